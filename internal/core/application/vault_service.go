package application

import (
	"context"
	"os"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"

	"github.com/coinvault-network/coinvault-daemon/internal/core/domain"
	"github.com/coinvault-network/coinvault-daemon/internal/core/ports"
	dbbadger "github.com/coinvault-network/coinvault-daemon/internal/infrastructure/storage/db/badger"
)

const eventChannelSize = 128

// VaultService is the transactional coordinator of the vault: every public
// mutating operation runs inside a single store transaction, recomputes the
// invariants it touches and emits its events after the commit. A failed
// operation leaves persistent state untouched.
type VaultService struct {
	network *chaincfg.Params

	mtx         sync.RWMutex
	dbDir       string
	repoManager ports.RepoManager
	eventCh     chan Event

	// unlockedMtx guards the per-session transient secrets of unlocked
	// keychains. They never cross a session boundary: LockAll zeroizes
	// them and Close always locks.
	unlockedMtx sync.Mutex
	unlocked    map[uint64]*unlockedSecrets
}

type unlockedSecrets struct {
	chainCode []byte
	privKey   []byte
}

// NewVaultService returns a closed vault service bound to a network.
func NewVaultService(network *chaincfg.Params) *VaultService {
	return &VaultService{
		network:  network,
		eventCh:  make(chan Event, eventChannelSize),
		unlocked: make(map[uint64]*unlockedSecrets),
	}
}

// EventChannel returns the channel events are pushed to, post-commit in
// commit order.
func (s *VaultService) EventChannel() chan Event {
	return s.eventCh
}

// Create initializes a fresh vault at path and opens it. An empty path
// creates an in-memory vault. Creating an existing path fails.
func (s *VaultService) Create(path string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.repoManager != nil {
		return ErrVaultAlreadyOpen
	}
	if len(path) > 0 {
		if _, err := os.Stat(path); err == nil {
			return ErrVaultAlreadyExists
		}
		if err := os.MkdirAll(path, 0700); err != nil {
			return err
		}
	}

	repoManager, err := dbbadger.NewRepoManager(path, nil)
	if err != nil {
		return err
	}
	if err := repoManager.SetVersion(
		context.Background(), &domain.Version{SchemaVersion: domain.SchemaVersion},
	); err != nil {
		repoManager.Close()
		return err
	}

	s.dbDir = path
	s.repoManager = repoManager
	log.WithField("path", path).Debug("vault created")
	return nil
}

// Open opens an existing vault, migrating the schema forward when the
// stored version lies inside the supported range.
func (s *VaultService) Open(path string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.repoManager != nil {
		return ErrVaultAlreadyOpen
	}
	if len(path) > 0 {
		if _, err := os.Stat(path); err != nil {
			return ErrVaultNotFound
		}
	}

	repoManager, err := dbbadger.NewRepoManager(path, nil)
	if err != nil {
		return err
	}

	ctx := context.Background()
	version, err := repoManager.GetVersion(ctx)
	if err != nil {
		repoManager.Close()
		return err
	}
	if version == nil {
		repoManager.Close()
		return domain.ErrUnsupportedSchema
	}
	if version.SchemaVersion < domain.SchemaBaseVersion ||
		version.SchemaVersion > domain.SchemaVersion {
		repoManager.Close()
		return domain.ErrUnsupportedSchema
	}
	if version.SchemaVersion < domain.SchemaVersion {
		if err := migrateSchema(ctx, repoManager, version.SchemaVersion); err != nil {
			repoManager.Close()
			return err
		}
	}

	s.dbDir = path
	s.repoManager = repoManager
	log.WithField("path", path).Debug("vault opened")
	return nil
}

// Close locks every keychain and releases the store.
func (s *VaultService) Close() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.repoManager == nil {
		return
	}
	s.lockAll()
	s.repoManager.Close()
	s.repoManager = nil
	s.dbDir = ""
}

// IsOpen returns whether a store is attached.
func (s *VaultService) IsOpen() bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.repoManager != nil
}

func (s *VaultService) manager() (ports.RepoManager, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if s.repoManager == nil {
		return nil, ErrVaultNotOpen
	}
	return s.repoManager, nil
}

// migrateSchema walks the store forward one schema version at a time. The
// only migration in range, 4 to 5, introduced the keychain hidden flag
// whose zero value is already correct for pre-existing rows.
func migrateSchema(
	ctx context.Context, repoManager ports.RepoManager, from uint32,
) error {
	for version := from; version < domain.SchemaVersion; version++ {
		log.WithField("from", version).WithField("to", version+1).
			Info("migrating vault schema")
	}
	return repoManager.SetVersion(
		ctx, &domain.Version{SchemaVersion: domain.SchemaVersion},
	)
}

// publishEvents pushes events post-commit. A congested channel drops the
// event rather than stalling the writer.
func (s *VaultService) publishEvents(events ...Event) {
	for _, event := range events {
		select {
		case s.eventCh <- event:
		default:
			log.WithField("event", event.Type().String()).
				Warn("event channel congested, dropping event")
		}
	}
}

func (s *VaultService) publishError(err error) {
	log.WithError(err).Error("vault operation failed")
	s.publishEvents(newOperationFailedEvent(err))
}
