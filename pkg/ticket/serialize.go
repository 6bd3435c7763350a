package ticket

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"
)

// FormatVersion is the envelope version written by Serialize and the only one
// Deserialize accepts.
const FormatVersion int32 = 3

// sentinel marks a string field equal to its contextual default.
const sentinel = "\x00"

// Reserved property keys carrying the issuance window inside the serialized
// dictionary.
const (
	issuedProperty  = ".issued"
	expiresProperty = ".expires"
)

var (
	// ErrUnsupportedVersion is returned when the envelope version is not FormatVersion.
	ErrUnsupportedVersion = errors.New("unsupported ticket format version")

	// ErrTruncated is returned when the envelope ends before the structure does.
	ErrTruncated = errors.New("truncated ticket envelope")
)

// Serialize writes the ticket as a versioned binary envelope. The layout is:
// version (int32 LE), identity (scheme, name/role claim types, claims),
// bootstrap token, optional actor identity, then the property dictionary with
// the issuance window folded in under reserved keys.
func Serialize(t *Ticket) ([]byte, error) {
	if t == nil || t.Identity == nil {
		return nil, errors.New("ticket has no identity")
	}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, FormatVersion); err != nil {
		return nil, err
	}

	writeIdentity(buf, t.Identity)
	writeProperties(buf, t.Properties)

	return buf.Bytes(), nil
}

// Deserialize reads a ticket previously written by Serialize.
func Deserialize(data []byte) (*Ticket, error) {
	r := bytes.NewReader(data)

	var version int32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, ErrTruncated
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	identity, err := readIdentity(r)
	if err != nil {
		return nil, err
	}

	properties, err := readProperties(r)
	if err != nil {
		return nil, err
	}

	return &Ticket{Identity: identity, Properties: properties}, nil
}

func writeIdentity(buf *bytes.Buffer, identity *Identity) {
	writeString(buf, identity.AuthenticationType)
	writeWithDefault(buf, identity.NameClaimType, ClaimTypeName)
	writeWithDefault(buf, identity.RoleClaimType, ClaimTypeRole)

	writeCount(buf, len(identity.Claims))
	for _, c := range identity.Claims {
		writeClaim(buf, c, identity.nameClaimTypeOrDefault())
	}

	writeString(buf, identity.BootstrapToken)

	if identity.Actor != nil {
		buf.WriteByte(1)
		writeIdentity(buf, identity.Actor)
	} else {
		buf.WriteByte(0)
	}
}

func writeClaim(buf *bytes.Buffer, c *Claim, nameClaimType string) {
	writeWithDefault(buf, c.Type, nameClaimType)
	writeString(buf, c.Value)
	writeWithDefault(buf, c.ValueType, DefaultValueType)
	writeWithDefault(buf, c.Issuer, DefaultIssuer)
	writeWithDefault(buf, c.OriginalIssuer, c.Issuer)

	writeCount(buf, len(c.Properties))
	for _, k := range sortedKeys(c.Properties) {
		writeString(buf, k)
		writeString(buf, c.Properties[k])
	}
}

func writeProperties(buf *bytes.Buffer, p *Properties) {
	items := map[string]string{}
	if p != nil {
		for k, v := range p.Items {
			items[k] = v
		}
		if !p.IssuedAt.IsZero() {
			items[issuedProperty] = p.IssuedAt.UTC().Format(time.RFC3339)
		}
		if !p.ExpiresAt.IsZero() {
			items[expiresProperty] = p.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}

	writeCount(buf, len(items))
	for _, k := range sortedKeys(items) {
		writeString(buf, k)
		writeString(buf, items[k])
	}
}

func readIdentity(r *bytes.Reader) (*Identity, error) {
	identity := &Identity{}

	var err error
	if identity.AuthenticationType, err = readString(r); err != nil {
		return nil, err
	}
	if identity.NameClaimType, err = readWithDefault(r, ClaimTypeName); err != nil {
		return nil, err
	}
	if identity.RoleClaimType, err = readWithDefault(r, ClaimTypeRole); err != nil {
		return nil, err
	}

	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	for n := 0; n < count; n++ {
		c, err := readClaim(r, identity.nameClaimTypeOrDefault())
		if err != nil {
			return nil, err
		}
		identity.Claims = append(identity.Claims, c)
	}

	if identity.BootstrapToken, err = readString(r); err != nil {
		return nil, err
	}

	hasActor, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncated
	}
	if hasActor == 1 {
		if identity.Actor, err = readIdentity(r); err != nil {
			return nil, err
		}
	}

	return identity, nil
}

func readClaim(r *bytes.Reader, nameClaimType string) (*Claim, error) {
	c := &Claim{}

	var err error
	if c.Type, err = readWithDefault(r, nameClaimType); err != nil {
		return nil, err
	}
	if c.Value, err = readString(r); err != nil {
		return nil, err
	}
	if c.ValueType, err = readWithDefault(r, DefaultValueType); err != nil {
		return nil, err
	}
	if c.Issuer, err = readWithDefault(r, DefaultIssuer); err != nil {
		return nil, err
	}
	if c.OriginalIssuer, err = readWithDefault(r, c.Issuer); err != nil {
		return nil, err
	}

	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	for n := 0; n < count; n++ {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		if c.Properties == nil {
			c.Properties = map[string]string{}
		}
		c.Properties[k] = v
	}

	return c, nil
}

func readProperties(r *bytes.Reader) (*Properties, error) {
	p := NewProperties()

	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	for n := 0; n < count; n++ {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		switch k {
		case issuedProperty:
			if p.IssuedAt, err = time.Parse(time.RFC3339, v); err != nil {
				return nil, err
			}
		case expiresProperty:
			if p.ExpiresAt, err = time.Parse(time.RFC3339, v); err != nil {
				return nil, err
			}
		default:
			p.Items[k] = v
		}
	}

	return p, nil
}

func (i *Identity) nameClaimTypeOrDefault() string {
	if i.NameClaimType != "" {
		return i.NameClaimType
	}
	return ClaimTypeName
}

func writeWithDefault(buf *bytes.Buffer, value, defaultValue string) {
	if value == defaultValue || value == "" {
		writeString(buf, sentinel)
		return
	}
	writeString(buf, value)
}

func readWithDefault(r *bytes.Reader, defaultValue string) (string, error) {
	s, err := readString(r)
	if err != nil {
		return "", err
	}
	if s == sentinel {
		return defaultValue, nil
	}
	return s, nil
}

func writeString(buf *bytes.Buffer, s string) {
	buf.Write(binary.AppendUvarint(nil, uint64(len(s))))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", ErrTruncated
	}
	if n > uint64(r.Len()) {
		return "", ErrTruncated
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", ErrTruncated
	}
	return string(b), nil
}

func writeCount(buf *bytes.Buffer, n int) {
	buf.Write(binary.AppendUvarint(nil, uint64(n)))
}

func readCount(r *bytes.Reader) (int, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, ErrTruncated
	}
	return int(n), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
