package multixact

import (
	"strconv"
	"strings"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

// Describe renders a group for logs as "id count[xid (status), ...]".
func Describe(multi common.MultiXactID, members []common.MultiXactMember) string {
	var b strings.Builder

	b.WriteString(strconv.FormatUint(uint64(multi), 10))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(len(members)))
	b.WriteByte('[')
	for i, mem := range members {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatUint(uint64(mem.Xid), 10))
		b.WriteString(" (")
		b.WriteString(mem.Status.String())
		b.WriteByte(')')
	}
	b.WriteByte(']')

	return b.String()
}
