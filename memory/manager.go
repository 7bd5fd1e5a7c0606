// Package memory provides the guest virtual address space that translated
// code loads from and stores to.
package memory

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
	"tlog.app/go/errors"
)

// DefaultSize is the guest address space size used when none is given.
const DefaultSize uint64 = 1 << 40

// ErrOutOfRange is matched by accesses outside the address space.
var ErrOutOfRange = errors.New("guest address out of range")

// AccessError describes a failed guest access.
type AccessError struct {
	// Address is the first byte of the access.
	Address uint64
	// Size is the access size in bytes.
	Size uint64
	// Write is set for stores.
	Write bool
}

func (e *AccessError) Error() string {
	kind := "read"
	if e.Write {
		kind = "write"
	}

	return fmt.Sprintf("%v: %s of %d bytes at 0x%x", ErrOutOfRange, kind, e.Size, e.Address)
}

// Unwrap makes errors.Is(err, ErrOutOfRange) hold.
func (e *AccessError) Unwrap() error {
	return ErrOutOfRange
}

// Manager is a flat little-endian guest address space. Pages are allocated
// on first touch by the underlying storage.
type Manager struct {
	storage *mem.Storage
	size    uint64
}

// NewManager creates an address space of size bytes.
func NewManager(size uint64) *Manager {
	return &Manager{
		storage: mem.NewStorage(size),
		size:    size,
	}
}

// Size returns the address space size.
func (m *Manager) Size() uint64 {
	return m.size
}

// Read copies n bytes starting at addr.
func (m *Manager) Read(addr, n uint64) ([]byte, error) {
	if !m.inRange(addr, n) {
		return nil, &AccessError{Address: addr, Size: n}
	}

	data, err := m.storage.Read(addr, n)
	if err != nil {
		return nil, errors.Wrap(err, "read 0x%x", addr)
	}

	return data, nil
}

// Write stores data at addr.
func (m *Manager) Write(addr uint64, data []byte) error {
	if !m.inRange(addr, uint64(len(data))) {
		return &AccessError{Address: addr, Size: uint64(len(data)), Write: true}
	}

	if err := m.storage.Write(addr, data); err != nil {
		return errors.Wrap(err, "write 0x%x", addr)
	}

	return nil
}

// Fetch reads one instruction word.
func (m *Manager) Fetch(addr uint64) (uint32, error) {
	return m.ReadUint32(addr)
}

// ReadUint8 reads a byte.
func (m *Manager) ReadUint8(addr uint64) (uint8, error) {
	b, err := m.Read(addr, 1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// ReadUint16 reads a halfword.
func (m *Manager) ReadUint16(addr uint64) (uint16, error) {
	b, err := m.Read(addr, 2)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 reads a word.
func (m *Manager) ReadUint32(addr uint64) (uint32, error) {
	b, err := m.Read(addr, 4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 reads a doubleword.
func (m *Manager) ReadUint64(addr uint64) (uint64, error) {
	b, err := m.Read(addr, 8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}

// WriteUint8 writes a byte.
func (m *Manager) WriteUint8(addr uint64, v uint8) error {
	return m.Write(addr, []byte{v})
}

// WriteUint16 writes a halfword.
func (m *Manager) WriteUint16(addr uint64, v uint16) error {
	return m.Write(addr, binary.LittleEndian.AppendUint16(nil, v))
}

// WriteUint32 writes a word.
func (m *Manager) WriteUint32(addr uint64, v uint32) error {
	return m.Write(addr, binary.LittleEndian.AppendUint32(nil, v))
}

// WriteUint64 writes a doubleword.
func (m *Manager) WriteUint64(addr uint64, v uint64) error {
	return m.Write(addr, binary.LittleEndian.AppendUint64(nil, v))
}

// Load reads size bytes (1, 2, 4 or 8) zero-extended to 64 bits. It is the
// access path of compiled code and panics with an *AccessError on a fault;
// the dispatch loop recovers it.
func (m *Manager) Load(addr uint64, size int) uint64 {
	b, err := m.Read(addr, uint64(size))
	if err != nil {
		panic(asAccessError(err, addr, size, false))
	}

	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

// Store writes the low size bytes of v. Like Load it panics on a fault.
func (m *Manager) Store(addr uint64, size int, v uint64) {
	b := binary.LittleEndian.AppendUint64(nil, v)

	if err := m.Write(addr, b[:size]); err != nil {
		panic(asAccessError(err, addr, size, true))
	}
}

func (m *Manager) inRange(addr, n uint64) bool {
	return addr+n >= addr && addr+n <= m.size
}

func asAccessError(err error, addr uint64, size int, write bool) *AccessError {
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae
	}

	return &AccessError{Address: addr, Size: uint64(size), Write: write}
}
