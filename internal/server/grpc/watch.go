package grpc

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/ticker"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Watch streams ticker payloads for the caller's notes merged with the
// account events of the caller's user until the client goes away. Every
// account event re-checks the caller's session; a revoked session ends the
// stream with Unauthenticated.
func (s *GRPCServer) Watch(req *api.WatchRequest, stream grpc.ServerStreamingServer[api.WatchEvent]) error {
	ctx := stream.Context()
	id, err := s.identity(ctx)
	if err != nil {
		return err
	}

	events, closeEvents, err := s.events.Subscribe(ctx, id.Username)
	if err != nil {
		s.logger.Error(ctx, "account events subscription failed", "user_id", id.UserID, "error", err)
		return status.Error(codes.Unavailable, "account events unavailable")
	}
	defer func() {
		if err := closeEvents(); err != nil {
			s.logger.Warn(ctx, "closing account events subscription", "error", err)
		}
	}()

	// grpc streams do not allow concurrent Send
	var mu sync.Mutex
	send := func(ev *api.WatchEvent) error {
		mu.Lock()
		defer mu.Unlock()
		return stream.Send(ev)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		latest := func(ctx context.Context) (string, error) {
			return s.notes.LatestEventID(ctx, id.UserID)
		}
		emit := func(_ context.Context, p ticker.Payload) error {
			return send(&api.WatchEvent{Ticker: &p})
		}
		return ticker.Run(gctx, s.watchInterval, req.LastSeenID, latest, emit)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if err := s.users.CheckSession(gctx, id); err != nil {
					return err
				}
				if err := send(&api.WatchEvent{Account: &ev}); err != nil {
					return err
				}
			}
		}
	})

	s.logger.Debug(ctx, "watch started", "user_id", id.UserID, "session_id", id.SessionID)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return s.fail(ctx, "watch", err)
	}
	return nil
}
