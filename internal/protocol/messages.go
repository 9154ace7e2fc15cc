package protocol

import "fmt"

// AuthRequest opens every connection.
type AuthRequest struct {
	Version Version
	Token   string
}

func (m *AuthRequest) encode(b *buffer) {
	b.version(m.Version)
	b.string(m.Token)
}

func (m *AuthRequest) decode(d *Decoder) (err error) {
	if m.Version, err = d.version(); err != nil {
		return err
	}
	m.Token, err = d.string()
	return err
}

// AuthResponse answers AuthRequest.
type AuthResponse struct {
	Success       bool
	FailureReason string
}

func (m *AuthResponse) encode(b *buffer) {
	b.bool(m.Success)
	b.string(m.FailureReason)
}

func (m *AuthResponse) decode(d *Decoder) (err error) {
	if m.Success, err = d.bool(); err != nil {
		return err
	}
	m.FailureReason, err = d.string()
	return err
}

// FileDescription announces the file the client wants to upload.
type FileDescription struct {
	Name       string
	Size       uint64
	PacketSize uint64
}

func (m *FileDescription) encode(b *buffer) {
	b.string(m.Name)
	b.uint64(m.Size)
	b.uint64(m.PacketSize)
}

func (m *FileDescription) decode(d *Decoder) (err error) {
	if m.Name, err = d.string(); err != nil {
		return err
	}
	if m.Size, err = d.uint64(); err != nil {
		return err
	}
	m.PacketSize, err = d.uint64()
	return err
}

// FileStatusKind tells the client what the server already knows about a file.
type FileStatusKind uint8

const (
	// StatusExists: the file was uploaded completely before.
	StatusExists FileStatusKind = iota
	// StatusResumeable: a previous upload stopped part way.
	StatusResumeable
	// StatusNonexistent: first contact, the upload starts at packet 0.
	StatusNonexistent
)

func (k FileStatusKind) String() string {
	switch k {
	case StatusExists:
		return "exists"
	case StatusResumeable:
		return "resumeable"
	case StatusNonexistent:
		return "nonexistent"
	}
	return fmt.Sprintf("FileStatusKind(%d)", uint8(k))
}

// FileStatus describes the resume point of a transfer.
type FileStatus struct {
	ID            int32
	Status        FileStatusKind
	RequestPacket uint64
	PacketSize    uint64
	TotalPackets  uint64
}

func (m *FileStatus) encode(b *buffer) {
	b.int32(m.ID)
	b.uint8(uint8(m.Status))
	b.uint64(m.RequestPacket)
	b.uint64(m.PacketSize)
	b.uint64(m.TotalPackets)
}

func (m *FileStatus) decode(d *Decoder) error {
	var err error
	if m.ID, err = d.int32(); err != nil {
		return err
	}
	kind, err := d.uint8()
	if err != nil {
		return err
	}
	if kind > uint8(StatusNonexistent) {
		return fmt.Errorf("%w: unknown file status %d", ErrMalformedMessage, kind)
	}
	m.Status = FileStatusKind(kind)
	if m.RequestPacket, err = d.uint64(); err != nil {
		return err
	}
	if m.PacketSize, err = d.uint64(); err != nil {
		return err
	}
	m.TotalPackets, err = d.uint64()
	return err
}

const (
	responseStatus uint8 = iota
	responseFailMessage
)

// FileDescriptionResponse is either a Status or a FailMessage. Status is
// nil exactly when the response is a failure.
type FileDescriptionResponse struct {
	Status      *FileStatus
	FailMessage string
}

// StatusResponse builds the Status variant.
func StatusResponse(s FileStatus) *FileDescriptionResponse {
	return &FileDescriptionResponse{Status: &s}
}

// FailResponse builds the FailMessage variant.
func FailResponse(msg string) *FileDescriptionResponse {
	return &FileDescriptionResponse{FailMessage: msg}
}

// Failed reports whether the response is the FailMessage variant.
func (m *FileDescriptionResponse) Failed() bool {
	return m.Status == nil
}

func (m *FileDescriptionResponse) encode(b *buffer) {
	if m.Status != nil {
		b.uint8(responseStatus)
		m.Status.encode(b)
		return
	}
	b.uint8(responseFailMessage)
	b.string(m.FailMessage)
}

func (m *FileDescriptionResponse) decode(d *Decoder) error {
	tag, err := d.uint8()
	if err != nil {
		return err
	}
	switch tag {
	case responseStatus:
		var s FileStatus
		if err := s.decode(d); err != nil {
			return err
		}
		m.Status, m.FailMessage = &s, ""
		return nil
	case responseFailMessage:
		msg, err := d.string()
		if err != nil {
			return err
		}
		m.Status, m.FailMessage = nil, msg
		return nil
	}
	return fmt.Errorf("%w: unknown response variant %d", ErrMalformedMessage, tag)
}

// FilePart carries one packet of file data.
type FilePart struct {
	PartNum uint64
	Data    []byte
}

func (m *FilePart) encode(b *buffer) {
	b.uint64(m.PartNum)
	b.bytes(m.Data, MaxDataLength)
}

func (m *FilePart) decode(d *Decoder) (err error) {
	if m.PartNum, err = d.uint64(); err != nil {
		return err
	}
	m.Data, err = d.bytes(MaxDataLength)
	return err
}

// FilePartResponse acknowledges (or refuses) one FilePart.
type FilePartResponse struct {
	Success bool
	Message string
}

func (m *FilePartResponse) encode(b *buffer) {
	b.bool(m.Success)
	b.string(m.Message)
}

func (m *FilePartResponse) decode(d *Decoder) (err error) {
	if m.Success, err = d.bool(); err != nil {
		return err
	}
	m.Message, err = d.string()
	return err
}
