// Package packets defines the world replication messages.
//
// Every message is a fixed-layout little-endian record that starts with its
// uint16 packet ID. Several messages may be concatenated in one frame.
package packets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Packet IDs
const (
	// Server -> Client
	ZC_ENTITY_SPAWN   uint16 = 0x0101 // Entity created
	ZC_ENTITY_STATE   uint16 = 0x0102 // Committed transform
	ZC_ENTITY_DESPAWN uint16 = 0x0103 // Entity destroyed
)

var (
	// ErrShortBuffer is returned when a buffer ends inside a message.
	ErrShortBuffer = errors.New("packets: short buffer")
	// ErrUnknownMessage is returned for an unrecognized packet ID.
	ErrUnknownMessage = errors.New("packets: unknown message")
)

// Message is an encodable replication message.
type Message interface {
	ID() uint16
	Size() int
	Encode() []byte
}

// Transform is a TRS triple in wire order.
type Transform struct {
	Position [3]float32
	Rotation [4]float32 // x, y, z, w
	Scale    [3]float32
}

const transformSize = 40 // 3 + 4 + 3 float32

// EntitySpawn (ZC_ENTITY_SPAWN 0x0101)
type EntitySpawn struct {
	NetID       uint32
	ParentID    uint32 // 0 for scene roots
	Name        [24]byte
	Transform   Transform
	HalfExtents [3]float32 // Zero when the entity has no collider
	Kind        uint8      // Physics kind
}

func (p *EntitySpawn) ID() uint16 { return ZC_ENTITY_SPAWN }

// Size returns packet size.
func (p *EntitySpawn) Size() int {
	return 34 + transformSize + 12 + 1
}

// Encode encodes the packet to bytes.
func (p *EntitySpawn) Encode() []byte {
	buf := make([]byte, p.Size())
	binary.LittleEndian.PutUint16(buf[0:], ZC_ENTITY_SPAWN)
	binary.LittleEndian.PutUint32(buf[2:], p.NetID)
	binary.LittleEndian.PutUint32(buf[6:], p.ParentID)
	copy(buf[10:34], p.Name[:])
	putTransform(buf[34:], p.Transform)
	putFloats(buf[74:], p.HalfExtents[:])
	buf[86] = p.Kind
	return buf
}

// SetName stores name, truncated to 24 bytes.
func (p *EntitySpawn) SetName(name string) {
	p.Name = [24]byte{}
	copy(p.Name[:], name)
}

// NameString returns the name without trailing zero bytes.
func (p *EntitySpawn) NameString() string {
	n := 0
	for n < len(p.Name) && p.Name[n] != 0 {
		n++
	}
	return string(p.Name[:n])
}

func (p *EntitySpawn) decode(buf []byte) {
	p.NetID = binary.LittleEndian.Uint32(buf[2:])
	p.ParentID = binary.LittleEndian.Uint32(buf[6:])
	copy(p.Name[:], buf[10:34])
	p.Transform = readTransform(buf[34:])
	readFloats(buf[74:], p.HalfExtents[:])
	p.Kind = buf[86]
}

// EntityState (ZC_ENTITY_STATE 0x0102)
type EntityState struct {
	NetID     uint32
	Tick      uint32 // Fixed step the state was committed after
	Transform Transform
}

func (p *EntityState) ID() uint16 { return ZC_ENTITY_STATE }

// Size returns packet size.
func (p *EntityState) Size() int {
	return 10 + transformSize
}

// Encode encodes the packet to bytes.
func (p *EntityState) Encode() []byte {
	buf := make([]byte, p.Size())
	binary.LittleEndian.PutUint16(buf[0:], ZC_ENTITY_STATE)
	binary.LittleEndian.PutUint32(buf[2:], p.NetID)
	binary.LittleEndian.PutUint32(buf[6:], p.Tick)
	putTransform(buf[10:], p.Transform)
	return buf
}

func (p *EntityState) decode(buf []byte) {
	p.NetID = binary.LittleEndian.Uint32(buf[2:])
	p.Tick = binary.LittleEndian.Uint32(buf[6:])
	p.Transform = readTransform(buf[10:])
}

// EntityDespawn (ZC_ENTITY_DESPAWN 0x0103)
type EntityDespawn struct {
	NetID uint32
}

func (p *EntityDespawn) ID() uint16 { return ZC_ENTITY_DESPAWN }

// Size returns packet size.
func (p *EntityDespawn) Size() int {
	return 6
}

// Encode encodes the packet to bytes.
func (p *EntityDespawn) Encode() []byte {
	buf := make([]byte, p.Size())
	binary.LittleEndian.PutUint16(buf[0:], ZC_ENTITY_DESPAWN)
	binary.LittleEndian.PutUint32(buf[2:], p.NetID)
	return buf
}

// Decode reads the message at the start of buf. Trailing bytes are ignored.
func Decode(buf []byte) (Message, error) {
	msg, _, err := decodeNext(buf)
	return msg, err
}

func decodeNext(buf []byte) (Message, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrShortBuffer
	}

	var msg Message
	id := binary.LittleEndian.Uint16(buf)
	switch id {
	case ZC_ENTITY_SPAWN:
		msg = &EntitySpawn{}
	case ZC_ENTITY_STATE:
		msg = &EntityState{}
	case ZC_ENTITY_DESPAWN:
		msg = &EntityDespawn{}
	default:
		return nil, 0, fmt.Errorf("%w: 0x%04X", ErrUnknownMessage, id)
	}

	n := msg.Size()
	if len(buf) < n {
		return nil, 0, fmt.Errorf("%w: 0x%04X needs %d bytes, have %d", ErrShortBuffer, id, n, len(buf))
	}
	switch m := msg.(type) {
	case *EntitySpawn:
		m.decode(buf)
	case *EntityState:
		m.decode(buf)
	case *EntityDespawn:
		m.NetID = binary.LittleEndian.Uint32(buf[2:])
	}
	return msg, n, nil
}

// DecodeAll decodes a frame of concatenated messages.
func DecodeAll(buf []byte) ([]Message, error) {
	var out []Message
	for len(buf) > 0 {
		msg, n, err := decodeNext(buf)
		if err != nil {
			return out, err
		}
		out = append(out, msg)
		buf = buf[n:]
	}
	return out, nil
}

// EncodeAll concatenates messages into one frame.
func EncodeAll(msgs ...Message) []byte {
	size := 0
	for _, m := range msgs {
		size += m.Size()
	}
	buf := make([]byte, 0, size)
	for _, m := range msgs {
		buf = append(buf, m.Encode()...)
	}
	return buf
}

func putTransform(buf []byte, t Transform) {
	putFloats(buf[0:], t.Position[:])
	putFloats(buf[12:], t.Rotation[:])
	putFloats(buf[28:], t.Scale[:])
}

func readTransform(buf []byte) Transform {
	var t Transform
	readFloats(buf[0:], t.Position[:])
	readFloats(buf[12:], t.Rotation[:])
	readFloats(buf[28:], t.Scale[:])
	return t
}

func putFloats(buf []byte, v []float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
}

func readFloats(buf []byte, v []float32) {
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
}

// TypeName returns a short label for a packet ID.
func TypeName(id uint16) string {
	switch id {
	case ZC_ENTITY_SPAWN:
		return "spawn"
	case ZC_ENTITY_STATE:
		return "state"
	case ZC_ENTITY_DESPAWN:
		return "despawn"
	default:
		return "unknown"
	}
}
