package wifi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/errs"
	"github.com/eugenetaranov/t2/internal/executor"
)

const (
	successMarker = "signal"
	failureMarker = "Unable to connect"

	unableToConnect = "Unable to connect to the network."
	timedOut        = `Timed out waiting to verify connection. Run "t2 wifi" to manually verify connection. If not connected, ensure you have entered the correct network credentials.`
)

// awaitAssociation races a listener on wifi info output against the
// connect timeout. Whichever settles first decides the outcome and cancels
// the other.
func (m *Manager) awaitAssociation(ctx context.Context) error {
	const op = errs.Op("wifi.associate")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return m.listen(gctx)
	})

	g.Go(func() error {
		timer := time.NewTimer(m.cfg.ConnectTimeout)
		defer timer.Stop()

		select {
		case <-gctx.Done():
			return nil
		case <-timer.C:
			return errs.E(op, errs.KindTimeout, timedOut)
		}
	})

	return g.Wait()
}

// listen queries wifi info until the output carries a verdict. A query that
// closes without one, or fails with text other than the failure marker, is
// issued again after the poll interval.
func (m *Manager) listen(ctx context.Context) error {
	query := func() error {
		proc, err := m.exec.Streaming(ctx, commands.GetWifiInfo())
		if err != nil {
			return backoff.Permanent(err)
		}

		err = m.exec.Watch(ctx, proc, associated)
		switch {
		case err == nil, errors.Is(err, executor.ErrClosedWithoutMatch):
			return err
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		case errs.Is(err, errs.KindProtocol):
			if strings.Contains(errs.Message(err), failureMarker) {
				return backoff.Permanent(errs.E(errs.Op("wifi.associate"), errs.KindProtocol, unableToConnect))
			}
			// iwinfo errors out while the interface is still coming up.
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(m.cfg.PollInterval), ctx)
	return backoff.Retry(query, b)
}

// associated is the matcher for wifi info output.
func associated(stdout string) (bool, error) {
	if strings.Contains(stdout, failureMarker) {
		return false, errs.E(errs.Op("wifi.associate"), errs.KindProtocol, unableToConnect)
	}
	return strings.Contains(stdout, successMarker), nil
}
