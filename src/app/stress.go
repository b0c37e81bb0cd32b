package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Blackdeer1524/multixact/src/multixact"
	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/txns"
)

var ErrMembersMismatch = errors.New("resolved members differ from the created ones")

type StressOptions struct {
	Workers int
	Ops     int
}

type StressReport struct {
	Created  int
	Expanded int
	Verified int
	Elapsed  time.Duration
}

// Stress runs Workers concurrent sessions, each creating, expanding and
// resolving Ops groups, and then resolves every group again from a fresh
// session.
func Stress(
	ctx context.Context,
	m *multixact.Manager,
	oracle *txns.Oracle,
	opts StressOptions,
) (StressReport, error) {
	if opts.Workers <= 0 || opts.Workers > m.Options().MaxWorkers {
		return StressReport{}, errors.Errorf(
			"workers must be in [1, %d], got %d", m.Options().MaxWorkers, opts.Workers,
		)
	}
	if opts.Ops <= 0 {
		return StressReport{}, errors.Errorf("ops must be positive, got %d", opts.Ops)
	}

	start := time.Now()

	var (
		mu       sync.Mutex
		expected = make(map[common.MultiXactID][]common.MultiXactMember, opts.Workers*opts.Ops)
		report   StressReport
	)

	eg, ctx := errgroup.WithContext(ctx)
	for w := range opts.Workers {
		eg.Go(func() error {
			s, err := m.NewSession(w)
			if err != nil {
				return err
			}
			defer s.Close()

			for i := range opts.Ops {
				if err := ctx.Err(); err != nil {
					return err
				}

				multi, want, expanded, err := stressOp(s, oracle, i)
				if err != nil {
					return errors.Wrapf(err, "worker %d op %d", w, i)
				}

				mu.Lock()
				expected[multi] = want
				report.Created++
				if expanded {
					report.Expanded++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return report, err
	}

	s, err := m.NewSession(0)
	if err != nil {
		return report, err
	}
	defer s.Close()

	for multi, want := range expected {
		got, err := s.GetMembers(multi, false)
		if err != nil {
			return report, errors.Wrapf(err, "verify %d", multi)
		}
		if !slices.Equal(got, want) {
			return report, errors.Wrapf(
				ErrMembersMismatch, "%s, want %s",
				multixact.Describe(multi, got), multixact.Describe(multi, want),
			)
		}
		report.Verified++
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

// stressOp plays one unit of work: it locks a row alongside another
// locker, and every third time the other locker finishes and a third one
// joins through Expand.
func stressOp(
	s *multixact.Session,
	oracle *txns.Oracle,
	i int,
) (common.MultiXactID, []common.MultiXactMember, bool, error) {
	xid := oracle.Begin()
	s.BeginUnitOfWork(xid)
	s.SetOldestMember()
	defer s.EndUnitOfWork()

	other := oracle.Begin()
	multi, err := s.Create(other, common.ForShare, xid, common.ForKeyShare)
	if err != nil {
		return 0, nil, false, err
	}
	want := []common.MultiXactMember{
		{Xid: xid, Status: common.ForKeyShare},
		{Xid: other, Status: common.ForShare},
	}
	finished := []common.TransactionID{xid, other}

	expanded := i%3 == 0
	if expanded {
		if err := oracle.Commit(other); err != nil {
			return 0, nil, false, err
		}
		finished = finished[:1]

		third := oracle.Begin()
		finished = append(finished, third)

		multi, err = s.Expand(multi, third, common.NoKeyUpdate)
		if err != nil {
			return 0, nil, false, err
		}
		want = []common.MultiXactMember{
			{Xid: xid, Status: common.ForKeyShare},
			{Xid: third, Status: common.NoKeyUpdate},
		}
	}

	got, err := s.GetMembers(multi, false)
	if err != nil {
		return 0, nil, false, err
	}
	if !slices.Equal(got, want) {
		return 0, nil, false, errors.Wrap(ErrMembersMismatch, multixact.Describe(multi, got))
	}

	running, err := s.IsRunning(multi, false)
	if err != nil {
		return 0, nil, false, err
	}
	if !running {
		return 0, nil, false, errors.Errorf("multi %d is not running while its creator is", multi)
	}

	for _, x := range finished {
		if err := oracle.Commit(x); err != nil {
			return 0, nil, false, err
		}
	}

	return multi, want, expanded, nil
}
