// Package grpc exposes the GophNotes services over gRPC with the JSON codec.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/dmitrijs2005/gophnotes/internal/notifier"
	"github.com/dmitrijs2005/gophnotes/internal/server/auth"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/services"
	"google.golang.org/grpc"
)

type UserService interface {
	Register(ctx context.Context, username string, key *models.WrappedKey) (*models.User, error)
	GetSalt(ctx context.Context, username string) (*services.SaltInfo, error)
	Login(ctx context.Context, username string, verifier []byte, userAgent string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	GetWrappedKey(ctx context.Context, userID string) (*models.WrappedKey, error)
	UpdateWrappedKey(ctx context.Context, id auth.Identity, oldVerifier []byte, key *models.WrappedKey) error
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	RevokeSession(ctx context.Context, id auth.Identity, sessionID string) error
	RevokeOtherSessions(ctx context.Context, id auth.Identity) error
	Logout(ctx context.Context, id auth.Identity) error
	CheckSession(ctx context.Context, id auth.Identity) error
}

type NoteService interface {
	Save(ctx context.Context, userID string, n *models.Note) (string, error)
	Delete(ctx context.Context, userID, noteID string) (string, error)
	List(ctx context.Context, userID string) ([]models.Note, error)
	LatestEventID(ctx context.Context, userID string) (string, error)
}

type BoardService interface {
	Get(ctx context.Context, userID string) (board.Order, error)
	Save(ctx context.Context, userID string, order board.Order) (board.Order, string, error)
}

type BackupService interface {
	PresignUpload(ctx context.Context, userID string) (string, string, error)
	PresignDownload(ctx context.Context, userID, key string) (string, error)
}

// AccountEvents streams the account-scoped events of a user.
// *notifier.RedisSubscriber implements it.
type AccountEvents interface {
	Subscribe(ctx context.Context, username string) (<-chan notifier.Event, func() error, error)
}

type Options struct {
	Address       string
	SecretKey     string
	WatchInterval time.Duration

	Users   UserService
	Notes   NoteService
	Boards  BoardService
	Backups BackupService
	Events  AccountEvents
}

type GRPCServer struct {
	address       string
	logger        logging.Logger
	jwtSecret     []byte
	watchInterval time.Duration

	users   UserService
	notes   NoteService
	boards  BoardService
	backups BackupService
	events  AccountEvents
}

func NewGRPCServer(l logging.Logger, opts Options) *GRPCServer {
	return &GRPCServer{
		address:       opts.Address,
		logger:        l.With("module", "grpc_server"),
		jwtSecret:     []byte(opts.SecretKey),
		watchInterval: opts.WatchInterval,
		users:         opts.Users,
		notes:         opts.Notes,
		boards:        opts.Boards,
		backups:       opts.Backups,
		events:        opts.Events,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	api.RegisterNotesServer(srv, s)
	return srv
}

// Run listens on the configured address until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
