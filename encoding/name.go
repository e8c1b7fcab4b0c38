package encoding

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Name component types from the NDN naming conventions.
const (
	TypeImplicitSha256Digest uint32 = 1
	TypeParametersSha256     uint32 = 2
	TypeGenericComponent     uint32 = 8
	TypeVersionComponent     uint32 = 54
)

// Component is a single typed name component.
type Component struct {
	Type  uint32
	Value []byte
}

// NewComponent returns a generic component with the given value.
func NewComponent(value string) Component {
	return Component{Type: TypeGenericComponent, Value: []byte(value)}
}

// NewDigestComponent returns an implicit SHA-256 digest component.
func NewDigestComponent(digest []byte) Component {
	return Component{Type: TypeImplicitSha256Digest, Value: digest}
}

// NewParamsDigestComponent returns a parameters SHA-256 digest component.
func NewParamsDigestComponent(digest []byte) Component {
	return Component{Type: TypeParametersSha256, Value: digest}
}

// NewVersionComponent returns a version component.
func NewVersionComponent(v uint64) Component {
	return Component{Type: TypeVersionComponent, Value: EncodeNonNeg(v)}
}

// NewNumberComponent returns a generic component carrying a non-negative
// integer value.
func NewNumberComponent(v uint64) Component {
	return Component{Type: TypeGenericComponent, Value: EncodeNonNeg(v)}
}

// Equal returns true when both components have the same type and value.
func (c Component) Equal(other Component) bool {
	return c.Type == other.Type && bytes.Equal(c.Value, other.Value)
}

// IsImplicitDigest returns true for an implicit SHA-256 digest component.
func (c Component) IsImplicitDigest() bool {
	return c.Type == TypeImplicitSha256Digest
}

// IsParamsDigest returns true for a parameters SHA-256 digest component.
func (c Component) IsParamsDigest() bool {
	return c.Type == TypeParametersSha256
}

// IsVersion returns true for a version component.
func (c Component) IsVersion() bool {
	return c.Type == TypeVersionComponent
}

// Number decodes the component value as a non-negative integer.
func (c Component) Number() (uint64, error) {
	return DecodeNonNeg(c.Value)
}

// String returns the URI form of the component.
func (c Component) String() string {
	switch c.Type {
	case TypeImplicitSha256Digest:
		return "sha256digest=" + hex.EncodeToString(c.Value)
	case TypeParametersSha256:
		return "params-sha256=" + hex.EncodeToString(c.Value)
	case TypeVersionComponent:
		v, err := c.Number()
		if err != nil {
			return "v=invalid"
		}
		return "v=" + strconv.FormatUint(v, 10)
	default:
		return escapeComponent(c.Value)
	}
}

// Name is an ordered sequence of typed components. The zero value is the
// empty name. Names are immutable: Append returns a new name.
type Name struct {
	comps []Component
}

// NewName returns a name over the given components.
func NewName(comps ...Component) Name {
	return Name{comps: comps}
}

// ParseName parses the URI form of a name, e.g. "/a/b/c".
func ParseName(uri string) (Name, error) {
	uri = strings.TrimPrefix(strings.TrimSpace(uri), "/")
	if uri == "" {
		return Name{}, nil
	}

	parts := strings.Split(uri, "/")
	comps := make([]Component, 0, len(parts))
	for _, part := range parts {
		comp, err := parseComponent(part)
		if err != nil {
			return Name{}, xerrors.Errorf("couldn't parse component '%s': %v", part, err)
		}

		comps = append(comps, comp)
	}

	return Name{comps: comps}, nil
}

func parseComponent(part string) (Component, error) {
	switch {
	case strings.HasPrefix(part, "sha256digest="):
		digest, err := hex.DecodeString(strings.TrimPrefix(part, "sha256digest="))
		if err != nil {
			return Component{}, xerrors.Errorf("invalid digest: %v", err)
		}
		return NewDigestComponent(digest), nil
	case strings.HasPrefix(part, "params-sha256="):
		digest, err := hex.DecodeString(strings.TrimPrefix(part, "params-sha256="))
		if err != nil {
			return Component{}, xerrors.Errorf("invalid digest: %v", err)
		}
		return NewParamsDigestComponent(digest), nil
	case strings.HasPrefix(part, "v="):
		v, err := strconv.ParseUint(strings.TrimPrefix(part, "v="), 10, 64)
		if err != nil {
			return Component{}, xerrors.Errorf("invalid version: %v", err)
		}
		return NewVersionComponent(v), nil
	default:
		value, err := unescapeComponent(part)
		if err != nil {
			return Component{}, err
		}
		return Component{Type: TypeGenericComponent, Value: value}, nil
	}
}

// Size returns the number of components.
func (n Name) Size() int {
	return len(n.comps)
}

// Get returns the component at the given position. Negative positions index
// from the end, so Get(-1) is the last component.
func (n Name) Get(i int) Component {
	if i < 0 {
		i += len(n.comps)
	}

	return n.comps[i]
}

// Append returns a new name with the components appended.
func (n Name) Append(comps ...Component) Name {
	out := make([]Component, 0, len(n.comps)+len(comps))
	out = append(out, n.comps...)
	out = append(out, comps...)

	return Name{comps: out}
}

// AppendStr returns a new name with generic components for each label.
func (n Name) AppendStr(labels ...string) Name {
	comps := make([]Component, len(labels))
	for i, label := range labels {
		comps[i] = NewComponent(label)
	}

	return n.Append(comps...)
}

// Prefix returns the name truncated to the first size components.
func (n Name) Prefix(size int) Name {
	if size < 0 {
		size += len(n.comps)
	}

	return Name{comps: n.comps[:size]}
}

// Equal returns true when both names have the same components.
func (n Name) Equal(other Name) bool {
	if len(n.comps) != len(other.comps) {
		return false
	}

	for i, c := range n.comps {
		if !c.Equal(other.comps[i]) {
			return false
		}
	}

	return true
}

// IsPrefixOf returns true when the name is a prefix of the other one.
func (n Name) IsPrefixOf(other Name) bool {
	if len(n.comps) > len(other.comps) {
		return false
	}

	for i, c := range n.comps {
		if !c.Equal(other.comps[i]) {
			return false
		}
	}

	return true
}

// WireEncode returns the TLV encoding of the name.
func (n Name) WireEncode() []byte {
	return MakeTLV(TypeName, n.encodeValue())
}

func (n Name) encodeValue() []byte {
	var value []byte
	for _, c := range n.comps {
		value = AppendTLV(value, c.Type, c.Value)
	}

	return value
}

// DecodeName decodes a name from its TLV encoding.
func DecodeName(buf []byte) (Name, error) {
	elems, err := DecodeTLVs(buf)
	if err != nil {
		return Name{}, xerrors.Errorf("couldn't parse name: %v", err)
	}

	if len(elems) != 1 || elems[0].Type != TypeName {
		return Name{}, xerrors.New("missing name element")
	}

	return decodeNameValue(elems[0].Value)
}

func decodeNameValue(value []byte) (Name, error) {
	elems, err := DecodeTLVs(value)
	if err != nil {
		return Name{}, xerrors.Errorf("couldn't parse components: %v", err)
	}

	comps := make([]Component, len(elems))
	for i, e := range elems {
		comps[i] = Component{Type: e.Type, Value: e.Value}
	}

	return Name{comps: comps}, nil
}

// String returns the canonical URI form of the name. Two equal names always
// produce the same URI, so it is usable as a map key.
func (n Name) String() string {
	if len(n.comps) == 0 {
		return "/"
	}

	sb := strings.Builder{}
	for _, c := range n.comps {
		sb.WriteByte('/')
		sb.WriteString(c.String())
	}

	return sb.String()
}

func escapeComponent(value []byte) string {
	sb := strings.Builder{}
	for _, b := range value {
		if b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' ||
			b >= '0' && b <= '9' || b == '-' || b == '.' || b == '_' || b == '~' {
			sb.WriteByte(b)
		} else {
			sb.WriteString(fmt.Sprintf("%%%02X", b))
		}
	}

	return sb.String()
}

func unescapeComponent(part string) ([]byte, error) {
	out := make([]byte, 0, len(part))
	for i := 0; i < len(part); i++ {
		if part[i] != '%' {
			out = append(out, part[i])
			continue
		}

		if i+2 >= len(part) {
			return nil, xerrors.New("truncated escape sequence")
		}

		b, err := hex.DecodeString(part[i+1 : i+3])
		if err != nil {
			return nil, xerrors.Errorf("invalid escape sequence: %v", err)
		}

		out = append(out, b[0])
		i += 2
	}

	return out, nil
}
