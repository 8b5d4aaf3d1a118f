// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

const (
	userFieldID         = 1
	userFieldLongName   = 2
	userFieldShortName  = 3
	userFieldMacAddr    = 4
	userFieldHwModel    = 5
	userFieldIsLicensed = 6
	userFieldRole       = 7
	userFieldPublicKey  = 8
)

// User carries node identity metadata, delivered via the NODEINFO_APP
// port or nested in a MapReport.
type User struct {
	ID         string
	LongName   string
	ShortName  string
	MacAddr    []byte
	HwModel    uint32
	IsLicensed bool
	Role       uint32
	PublicKey  []byte
}

// DecodeUser parses a User from b.
func DecodeUser(b []byte) (*User, error) {
	u := &User{}
	err := eachField(b, func(f field) error {
		switch f.num {
		case userFieldID:
			s, err := f.asString()
			if err != nil {
				return err
			}
			u.ID = s
		case userFieldLongName:
			s, err := f.asString()
			if err != nil {
				return err
			}
			u.LongName = s
		case userFieldShortName:
			s, err := f.asString()
			if err != nil {
				return err
			}
			u.ShortName = s
		case userFieldMacAddr:
			u.MacAddr = f.bytes
		case userFieldHwModel:
			u.HwModel = uint32(f.varint)
		case userFieldIsLicensed:
			u.IsLicensed = f.varint != 0
		case userFieldRole:
			u.Role = uint32(f.varint)
		case userFieldPublicKey:
			u.PublicKey = f.bytes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// EncodeUser is the round-trip counterpart of DecodeUser.
func EncodeUser(u *User) []byte {
	var dst []byte
	dst = encodeStringField(dst, userFieldID, u.ID)
	dst = encodeStringField(dst, userFieldLongName, u.LongName)
	dst = encodeStringField(dst, userFieldShortName, u.ShortName)
	if len(u.MacAddr) > 0 {
		dst = encodeBytes(dst, userFieldMacAddr, u.MacAddr)
	}
	if u.HwModel != 0 {
		dst = encodeVarintField(dst, userFieldHwModel, uint64(u.HwModel))
	}
	dst = encodeBoolField(dst, userFieldIsLicensed, u.IsLicensed)
	if u.Role != 0 {
		dst = encodeVarintField(dst, userFieldRole, uint64(u.Role))
	}
	if len(u.PublicKey) > 0 {
		dst = encodeBytes(dst, userFieldPublicKey, u.PublicKey)
	}
	return dst
}
