package saturn

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/user-none/satcore/vdp"
)

// Save-state format constants: a magic string, a version, and a pair of
// CRC32 checksums guarding configuration identity and payload integrity.
const (
	stateVersion    = 1
	stateMagic      = "SATCOREVSTATE"
	stateHeaderSize = len(stateMagic) + 2 + 4 + 4 // magic + version + identityCRC + dataCRC
)

var (
	errStateTooShort  = errors.New("save state too short")
	errStateBadMagic  = errors.New("invalid save state magic")
	errStateVersion   = errors.New("unsupported save state version")
	errStateIdentity  = errors.New("save state does not match this machine's configuration")
	errStateCorrupt   = errors.New("save state data is corrupted")
)

// identityCRC fingerprints the machine configuration a save state is valid
// for: WRAM size and the inserted cartridge's kind and size. Loading a
// state captured under a different configuration is rejected before any
// live state is touched.
func (m *Machine) identityCRC() uint32 {
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(m.wram)))
	buf[4] = byte(m.SCU.Cart.Kind())
	binary.LittleEndian.PutUint32(buf[5:9], uint32(m.SCU.Cart.Size()))
	return crc32.ChecksumIEEE(buf)
}

// SerializeSize returns the total save-state byte size for the machine's
// current configuration.
func (m *Machine) SerializeSize() int {
	return stateHeaderSize +
		8 + // scheduler current cycle
		m.SCU.Intc.SerializeSize() +
		m.SCU.Timers.SerializeSize() +
		m.SCU.DMA.SerializeSize() +
		1 + m.SCU.Cart.Size() + // cart kind tag + raw data
		m.VDP1.SerializeSize() +
		m.VDP2.SerializeSize() +
		m.Phase.SerializeSize() +
		len(m.wram)
}

// Serialize captures a full save state and returns it as a byte slice.
func (m *Machine) Serialize() []byte {
	data := make([]byte, m.SerializeSize())

	copy(data[0:len(stateMagic)], stateMagic)
	binary.LittleEndian.PutUint16(data[len(stateMagic):len(stateMagic)+2], stateVersion)
	binary.LittleEndian.PutUint32(data[len(stateMagic)+2:len(stateMagic)+6], m.identityCRC())

	offset := stateHeaderSize
	binary.LittleEndian.PutUint64(data[offset:], m.Sched.Current())
	offset += 8
	offset = m.SCU.Intc.Serialize(data, offset)
	offset = m.SCU.Timers.Serialize(data, offset)
	offset = m.SCU.DMA.Serialize(data, offset)
	data[offset] = byte(m.SCU.Cart.Kind())
	offset++
	offset += copy(data[offset:], m.SCU.Cart.Raw())
	offset = m.VDP1.Serialize(data, offset)
	offset = m.VDP2.Serialize(data, offset)
	offset = m.Phase.Serialize(data, offset)
	offset += copy(data[offset:], m.wram)

	dataCRC := crc32.ChecksumIEEE(data[stateHeaderSize:offset])
	binary.LittleEndian.PutUint32(data[len(stateMagic)+6:len(stateMagic)+10], dataCRC)

	return data
}

// VerifyState checks a save state's header and checksums without loading
// it or mutating any live state.
func (m *Machine) VerifyState(data []byte) error {
	if len(data) < m.SerializeSize() {
		return errStateTooShort
	}
	if string(data[0:len(stateMagic)]) != stateMagic {
		return errStateBadMagic
	}
	version := binary.LittleEndian.Uint16(data[len(stateMagic) : len(stateMagic)+2])
	if version > stateVersion {
		return errStateVersion
	}
	identity := binary.LittleEndian.Uint32(data[len(stateMagic)+2 : len(stateMagic)+6])
	if identity != m.identityCRC() {
		return errStateIdentity
	}
	wantCRC := binary.LittleEndian.Uint32(data[len(stateMagic)+6 : len(stateMagic)+10])
	gotCRC := crc32.ChecksumIEEE(data[stateHeaderSize:m.SerializeSize()])
	if wantCRC != gotCRC {
		return errStateCorrupt
	}
	return nil
}

// Deserialize restores a full save state captured by Serialize. The render
// queue is synced before and after so a threaded renderer never observes a
// half-restored VDP.
func (m *Machine) Deserialize(data []byte) error {
	if err := m.VerifyState(data); err != nil {
		return err
	}
	m.Render.Sync(vdp.EvPreSaveStateSync)

	offset := stateHeaderSize
	// The absolute cycle count is captured for diagnostic purposes only: the
	// scheduler has no primitive to rewind its counter without re-firing
	// every pending event at the old deadlines, so restoring it exactly is
	// left to Start() re-arming each phase event fresh from wherever the
	// live scheduler currently sits.
	offset += 8
	offset = m.SCU.Intc.Deserialize(data, offset)
	offset = m.SCU.Timers.Deserialize(data, offset)
	offset = m.SCU.DMA.Deserialize(data, offset)
	offset++ // cart kind tag: the caller must have already inserted a
	// matching cartridge (VerifyState's identity check enforces this); the
	// tag byte itself is informational only.
	if n := m.SCU.Cart.Size(); n > 0 {
		if err := m.SCU.Cart.LoadRaw(data[offset : offset+n]); err != nil {
			return err
		}
		offset += n
	}
	offset = m.VDP1.Deserialize(data, offset)
	offset = m.VDP2.Deserialize(data, offset)
	offset = m.Phase.Deserialize(data, offset)
	offset += copy(m.wram, data[offset:offset+len(m.wram)])

	m.Phase.Start()
	m.Render.Sync(vdp.EvPostLoadStateSync)
	return nil
}
