// Package transfer decides where an upload starts and then receives its
// packets, keeping the destination file and the stored progress in step.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/filex"
	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dmitrijs2005/stableftp/internal/protocol"
	"github.com/dmitrijs2005/stableftp/internal/server/models"
)

// Store is the part of the progress store used by transfers.
type Store interface {
	FindByFilename(ctx context.Context, name string) (*models.TransferRecord, error)
	Create(ctx context.Context, rec *models.TransferRecord) (*models.TransferRecord, error)
	IncrementCurrentPacket(ctx context.Context, id int32) (*models.TransferRecord, error)
}

// Session is one planned upload. File is nil when the upload is already
// complete.
type Session struct {
	File   *os.File
	Record *models.TransferRecord
	Path   string
	Size   uint64

	release func()
}

// Complete reports whether all packets have been stored.
func (s *Session) Complete() bool {
	return s.Record.Complete()
}

// Close closes the destination file and releases the filename.
func (s *Session) Close() error {
	var err error
	if s.File != nil {
		err = s.File.Close()
		s.File = nil
	}
	if s.release != nil {
		s.release()
	}
	return err
}

type Planner struct {
	store  Store
	dir    string
	locks  *Locker
	logger logging.Logger
}

func NewPlanner(store Store, dir string, locks *Locker, logger logging.Logger) *Planner {
	return &Planner{store: store, dir: dir, locks: locks, logger: logger.With("module", "planner")}
}

// ValidateFileName accepts plain file names only: no directories, no "." or
// "..", at most common.MaxFileNameLength bytes.
func ValidateFileName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", common.ErrorInvalidFileName, name)
	case len(name) > common.MaxFileNameLength:
		return fmt.Errorf("%w: longer than %d bytes", common.ErrorInvalidFileName, common.MaxFileNameLength)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", common.ErrorInvalidFileName, name)
	}
	return nil
}

// ValidatePacketSize checks the packet size bounds.
func ValidatePacketSize(size uint64) error {
	if size < common.MinPacketSize || size > common.MaxPacketSize {
		return fmt.Errorf("%w: %d, allowed %d..%d", common.ErrorInvalidPacketSize, size, common.MinPacketSize, common.MaxPacketSize)
	}
	return nil
}

// Plan resolves desc against the stored progress and prepares the
// destination file. Any failure meant for the peer is a *RejectError. On
// success the caller owns the session and must Close it.
func (p *Planner) Plan(ctx context.Context, desc protocol.FileDescription, ownerID int32) (*Session, protocol.FileStatus, error) {
	if err := ValidatePacketSize(desc.PacketSize); err != nil {
		return nil, protocol.FileStatus{}, reject(err, "packet size %d is outside %d..%d", desc.PacketSize, common.MinPacketSize, common.MaxPacketSize)
	}
	if err := ValidateFileName(desc.Name); err != nil {
		return nil, protocol.FileStatus{}, reject(err, "invalid file name")
	}

	release, ok := p.locks.TryLock(desc.Name)
	if !ok {
		return nil, protocol.FileStatus{}, reject(nil, "transfer already in progress")
	}

	s, status, err := p.plan(ctx, desc, ownerID)
	if err != nil {
		release()
		return nil, protocol.FileStatus{}, err
	}
	s.release = release
	return s, status, nil
}

func (p *Planner) plan(ctx context.Context, desc protocol.FileDescription, ownerID int32) (*Session, protocol.FileStatus, error) {
	path := filepath.Join(p.dir, desc.Name)

	rec, err := p.store.FindByFilename(ctx, desc.Name)
	switch {
	case err == nil:
		return p.resume(ctx, desc, rec, path)
	case errors.Is(err, common.ErrorNotFound):
		return p.start(ctx, desc, ownerID, path)
	default:
		return nil, protocol.FileStatus{}, reject(err, "progress lookup failed")
	}
}

func (p *Planner) resume(ctx context.Context, desc protocol.FileDescription, rec *models.TransferRecord, path string) (*Session, protocol.FileStatus, error) {
	if desc.Size != rec.Size {
		return nil, protocol.FileStatus{}, reject(nil, "size mismatch: %d bytes declared, stored transfer has %d", desc.Size, rec.Size)
	}

	s := &Session{Record: rec, Path: path, Size: rec.Size}

	if rec.Complete() {
		if _, err := os.Stat(path); err != nil {
			p.logger.Warn(ctx, "completed transfer has no destination file", "file", desc.Name, "error", err)
		}
		return s, statusOf(rec, protocol.StatusExists), nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, os.ErrNotExist) {
		p.logger.Warn(ctx, "destination file missing for unfinished transfer, recreating",
			"file", desc.Name, "current_packet", rec.CurrentPacket, "total_packets", rec.TotalPackets)
		f, err = filex.CreateSized(path, rec.Size)
	}
	if err != nil {
		return nil, protocol.FileStatus{}, reject(err, "cannot open destination file")
	}

	if _, err := f.Seek(rec.Offset(), io.SeekStart); err != nil {
		_ = f.Close()
		return nil, protocol.FileStatus{}, reject(err, "cannot seek destination file")
	}

	s.File = f
	p.logger.Info(ctx, "resuming transfer", "file", desc.Name, "from_packet", rec.CurrentPacket, "total_packets", rec.TotalPackets)
	return s, statusOf(rec, protocol.StatusResumeable), nil
}

// start records a new transfer and then creates its file. A crash in between
// leaves a record without a file, which resume recreates.
func (p *Planner) start(ctx context.Context, desc protocol.FileDescription, ownerID int32, path string) (*Session, protocol.FileStatus, error) {
	switch _, err := os.Lstat(path); {
	case err == nil:
		return nil, protocol.FileStatus{}, reject(os.ErrExist, "destination file exists without a transfer record")
	case !errors.Is(err, os.ErrNotExist):
		return nil, protocol.FileStatus{}, reject(err, "cannot create destination file")
	}

	rec, err := p.store.Create(ctx, &models.TransferRecord{
		Filename:     desc.Name,
		Size:         desc.Size,
		TotalPackets: common.NumPackets(desc.Size, desc.PacketSize),
		PacketSize:   desc.PacketSize,
		OwnerID:      ownerID,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, protocol.FileStatus{}, reject(err, "transfer already in progress")
		}
		return nil, protocol.FileStatus{}, reject(err, "cannot record transfer")
	}

	f, err := filex.CreateSized(path, desc.Size)
	if err != nil {
		p.logger.Warn(ctx, "transfer recorded but destination file not created", "file", desc.Name, "error", err)
		return nil, protocol.FileStatus{}, reject(err, "cannot create destination file")
	}

	p.logger.Info(ctx, "new transfer", "file", desc.Name, "size", desc.Size, "packet_size", desc.PacketSize, "total_packets", rec.TotalPackets)
	return &Session{File: f, Record: rec, Path: path, Size: desc.Size}, statusOf(rec, protocol.StatusNonexistent), nil
}

func statusOf(rec *models.TransferRecord, kind protocol.FileStatusKind) protocol.FileStatus {
	return protocol.FileStatus{
		ID:            rec.ID,
		Status:        kind,
		RequestPacket: rec.CurrentPacket,
		PacketSize:    rec.PacketSize,
		TotalPackets:  rec.TotalPackets,
	}
}
