package arch

import (
	"fmt"
	"strings"
)

// InputKind enumerates the ways a network input can be built from a
// generation request. The set is closed: adding a kind means adding a
// constant here, a name in inputKindNames and an encoder.
type InputKind int

const (
	// InputSourceImage is one source view, normalized to [-1,1].
	InputSourceImage InputKind = iota
	// InputSourceImages is every concrete view stacked in domain order;
	// missing views are blank.
	InputSourceImages
	// InputTargetDomainChannelized is the one-hot target index tiled over
	// the image plane.
	InputTargetDomainChannelized
	// InputTargetDomain is the target index as a 1x1 tensor.
	InputTargetDomain
	// InputSourceDomain is the source index as a 1x1 tensor.
	InputSourceDomain

	numInputKinds
)

var inputKindNames = [numInputKinds]string{
	InputSourceImage:             "sourceImage",
	InputSourceImages:            "sourceImages",
	InputTargetDomainChannelized: "targetDomain-channelized",
	InputTargetDomain:            "targetDomain",
	InputSourceDomain:            "sourceDomain",
}

// InputKinds returns every defined kind.
func InputKinds() []InputKind {
	kinds := make([]InputKind, 0, numInputKinds)
	for k := InputKind(0); k < numInputKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseInputKind maps a configuration name to its kind.
func ParseInputKind(value string) (InputKind, error) {
	v := strings.TrimSpace(value)
	for k, name := range inputKindNames {
		if strings.EqualFold(name, v) {
			return InputKind(k), nil
		}
	}
	return 0, fmt.Errorf("invalid input kind %q (valid: %s)", value, strings.Join(inputKindNames[:], ", "))
}

// Valid reports whether k is one of the defined kinds.
func (k InputKind) Valid() bool {
	return k >= 0 && k < numInputKinds
}

func (k InputKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
	return inputKindNames[k]
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *InputKind) UnmarshalText(text []byte) error {
	parsed, err := ParseInputKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (k InputKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid input kind %d", int(k))
	}
	return []byte(k.String()), nil
}
