// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

// Envelope is the outer record a broker delivers on an encrypted/e topic:
// a nested Packet plus the channel name and originating gateway id that
// the packet itself does not carry.
type Envelope struct {
	Packet    *Packet
	ChannelID string
	GatewayID string
}

const (
	envFieldPacket    = 1
	envFieldChannelID = 2
	envFieldGatewayID = 3
)

// DecodeEnvelope parses an Envelope from b.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	e := &Envelope{}
	err := eachField(b, func(f field) error {
		switch f.num {
		case envFieldPacket:
			if f.typ != WireBytes {
				return nil
			}
			pkt, err := DecodePacket(f.bytes)
			if err != nil {
				return err
			}
			e.Packet = pkt
		case envFieldChannelID:
			s, err := f.asString()
			if err != nil {
				return err
			}
			e.ChannelID = s
		case envFieldGatewayID:
			s, err := f.asString()
			if err != nil {
				return err
			}
			e.GatewayID = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// EncodeEnvelope is the round-trip counterpart used by tests and by
// anything that needs to rebuild a wire payload from a decoded value.
func EncodeEnvelope(e *Envelope) []byte {
	var dst []byte
	if e.Packet != nil {
		dst = encodeBytes(dst, envFieldPacket, EncodePacket(e.Packet))
	}
	dst = encodeStringField(dst, envFieldChannelID, e.ChannelID)
	dst = encodeStringField(dst, envFieldGatewayID, e.GatewayID)
	return dst
}

const (
	pktFieldFrom         = 1
	pktFieldTo           = 2
	pktFieldChannel      = 3
	pktFieldDecoded      = 4
	pktFieldEncrypted    = 5
	pktFieldID           = 6
	pktFieldRxTime       = 7
	pktFieldHopLimit     = 10
	pktFieldWantAck      = 11
	pktFieldPriority     = 12
	pktFieldRxSnr        = 13
	pktFieldRxRssi       = 14
	pktFieldHopStart     = 15
	pktFieldPublicKey    = 16
	pktFieldPkiEncrypted = 17
	pktFieldViaMqtt      = 18
)

// Packet is a single mesh packet: routing metadata plus either a decoded
// Data payload or an opaque encrypted byte string.
type Packet struct {
	From         uint32
	To           uint32
	Channel      uint32
	Decoded      *Data
	Encrypted    []byte
	ID           uint32
	RxTime       uint32
	HopLimit     uint32
	WantAck      bool
	Priority     uint32
	RxSnr        float32
	RxRssi       int32
	HopStart     uint32
	PublicKey    []byte
	PkiEncrypted bool
	ViaMqtt      bool
}

// DecodePacket parses a Packet from b. from/to/id tolerate both the
// fixed32 and varint encodings some peers use for the same field.
func DecodePacket(b []byte) (*Packet, error) {
	p := &Packet{}
	err := eachField(b, func(f field) error {
		switch f.num {
		case pktFieldFrom:
			p.From = f.asUint32()
		case pktFieldTo:
			p.To = f.asUint32()
		case pktFieldChannel:
			p.Channel = uint32(f.varint)
		case pktFieldDecoded:
			d, err := DecodeData(f.bytes)
			if err != nil {
				return err
			}
			p.Decoded = d
		case pktFieldEncrypted:
			p.Encrypted = f.bytes
		case pktFieldID:
			p.ID = f.asUint32()
		case pktFieldRxTime:
			p.RxTime = uint32(f.varint)
		case pktFieldHopLimit:
			p.HopLimit = uint32(f.varint)
		case pktFieldWantAck:
			p.WantAck = f.varint != 0
		case pktFieldPriority:
			p.Priority = uint32(f.varint)
		case pktFieldRxSnr:
			p.RxSnr = float32(f.asSignedVarint()) / 4.0
		case pktFieldRxRssi:
			p.RxRssi = int32(f.asUint32())
		case pktFieldHopStart:
			p.HopStart = uint32(f.varint)
		case pktFieldPublicKey:
			p.PublicKey = f.bytes
		case pktFieldPkiEncrypted:
			p.PkiEncrypted = f.varint != 0
		case pktFieldViaMqtt:
			p.ViaMqtt = f.varint != 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// EncodePacket is the round-trip counterpart of DecodePacket.
func EncodePacket(p *Packet) []byte {
	var dst []byte
	dst = encodeFixed32Field(dst, pktFieldFrom, p.From)
	dst = encodeFixed32Field(dst, pktFieldTo, p.To)
	if p.Channel != 0 {
		dst = encodeVarintField(dst, pktFieldChannel, uint64(p.Channel))
	}
	if p.Decoded != nil {
		dst = encodeBytes(dst, pktFieldDecoded, EncodeData(p.Decoded))
	}
	if len(p.Encrypted) > 0 {
		dst = encodeBytes(dst, pktFieldEncrypted, p.Encrypted)
	}
	dst = encodeFixed32Field(dst, pktFieldID, p.ID)
	if p.RxTime != 0 {
		dst = encodeVarintField(dst, pktFieldRxTime, uint64(p.RxTime))
	}
	if p.HopLimit != 0 {
		dst = encodeVarintField(dst, pktFieldHopLimit, uint64(p.HopLimit))
	}
	dst = encodeBoolField(dst, pktFieldWantAck, p.WantAck)
	if p.Priority != 0 {
		dst = encodeVarintField(dst, pktFieldPriority, uint64(p.Priority))
	}
	dst = encodeSignedVarintField(dst, pktFieldRxSnr, int64(p.RxSnr*4))
	dst = encodeFixed32Field(dst, pktFieldRxRssi, uint32(p.RxRssi))
	if p.HopStart != 0 {
		dst = encodeVarintField(dst, pktFieldHopStart, uint64(p.HopStart))
	}
	if len(p.PublicKey) > 0 {
		dst = encodeBytes(dst, pktFieldPublicKey, p.PublicKey)
	}
	dst = encodeBoolField(dst, pktFieldPkiEncrypted, p.PkiEncrypted)
	dst = encodeBoolField(dst, pktFieldViaMqtt, p.ViaMqtt)
	return dst
}

const (
	dataFieldPortNum      = 1
	dataFieldPayload      = 2
	dataFieldWantResponse = 3
	dataFieldDest         = 4
	dataFieldSource       = 5
	dataFieldRequestID    = 6
	dataFieldReplyID      = 7
	dataFieldEmoji        = 8
)

// PortNum identifies the application that produced a Data payload.
type PortNum uint32

const (
	PortUnknown      PortNum = 0
	PortTextMessage  PortNum = 1
	PortPosition     PortNum = 3
	PortNodeInfo     PortNum = 4
	PortTelemetry    PortNum = 67
	PortTraceroute   PortNum = 70
	PortMapReport    PortNum = 73
)

// Data is the decoded payload carried inside a Packet's decoded branch.
type Data struct {
	PortNum      PortNum
	Payload      []byte
	WantResponse bool
	Dest         uint32
	Source       uint32
	RequestID    uint32
	ReplyID      uint32
	Emoji        uint32
}

// DecodeData parses a Data record from b.
func DecodeData(b []byte) (*Data, error) {
	d := &Data{}
	err := eachField(b, func(f field) error {
		switch f.num {
		case dataFieldPortNum:
			d.PortNum = PortNum(f.varint)
		case dataFieldPayload:
			d.Payload = f.bytes
		case dataFieldWantResponse:
			d.WantResponse = f.varint != 0
		case dataFieldDest:
			d.Dest = f.asUint32()
		case dataFieldSource:
			d.Source = f.asUint32()
		case dataFieldRequestID:
			d.RequestID = uint32(f.varint)
		case dataFieldReplyID:
			d.ReplyID = uint32(f.varint)
		case dataFieldEmoji:
			d.Emoji = uint32(f.varint)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// EncodeData is the round-trip counterpart of DecodeData.
func EncodeData(d *Data) []byte {
	var dst []byte
	dst = encodeVarintField(dst, dataFieldPortNum, uint64(d.PortNum))
	if len(d.Payload) > 0 {
		dst = encodeBytes(dst, dataFieldPayload, d.Payload)
	}
	dst = encodeBoolField(dst, dataFieldWantResponse, d.WantResponse)
	if d.Dest != 0 {
		dst = encodeVarintField(dst, dataFieldDest, uint64(d.Dest))
	}
	if d.Source != 0 {
		dst = encodeVarintField(dst, dataFieldSource, uint64(d.Source))
	}
	if d.RequestID != 0 {
		dst = encodeVarintField(dst, dataFieldRequestID, uint64(d.RequestID))
	}
	if d.ReplyID != 0 {
		dst = encodeVarintField(dst, dataFieldReplyID, uint64(d.ReplyID))
	}
	if d.Emoji != 0 {
		dst = encodeVarintField(dst, dataFieldEmoji, uint64(d.Emoji))
	}
	return dst
}
