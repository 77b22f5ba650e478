package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Prefix is a raw byte sequence searched for inside packet payloads.
// IPv4 prefixes are written in dotted decimal ("185.54.80", three octets),
// the IPv6 prefix in colon-separated hex groups ("2a02:4460", four bytes).
type Prefix []byte

func (p Prefix) String() string {
	if len(p) == 3 {
		return fmt.Sprintf("%d.%d.%d", p[0], p[1], p[2])
	}
	parts := make([]string, 0, (len(p)+1)/2)
	for i := 0; i < len(p); i += 2 {
		if i+1 < len(p) {
			parts = append(parts, fmt.Sprintf("%02x%02x", p[i], p[i+1]))
		} else {
			parts = append(parts, fmt.Sprintf("%02x", p[i]))
		}
	}
	return strings.Join(parts, ":")
}

// MarshalYAML renders the prefix back in its configuration syntax.
func (p Prefix) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// ParsePrefix parses the configuration syntax for payload prefixes.
func ParsePrefix(s string) (Prefix, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty prefix")
	}

	if strings.Contains(s, ":") {
		var out Prefix
		for _, group := range strings.Split(s, ":") {
			if len(group) == 0 || len(group) > 4 || len(group)%2 != 0 {
				return nil, fmt.Errorf("invalid prefix %q: bad hex group %q", s, group)
			}
			for i := 0; i < len(group); i += 2 {
				b, err := strconv.ParseUint(group[i:i+2], 16, 8)
				if err != nil {
					return nil, fmt.Errorf("invalid prefix %q: %w", s, err)
				}
				out = append(out, byte(b))
			}
		}
		return out, nil
	}

	var out Prefix
	for _, octet := range strings.Split(s, ".") {
		b, err := strconv.ParseUint(octet, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid prefix %q: %w", s, err)
		}
		out = append(out, byte(b))
	}
	return out, nil
}

// StringToPrefixHookFunc decodes prefix strings during unmarshalling.
func StringToPrefixHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(Prefix(nil)) {
			return data, nil
		}
		return ParsePrefix(data.(string))
	}
}
