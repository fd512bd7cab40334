package interpreter

import (
	"fmt"
	"io"

	"github.com/chazu/lox/value"
	"github.com/fxamacker/cbor/v2"
)

// snapshotVersion is bumped whenever the Snapshot layout changes.
const snapshotVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("interpreter: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is the serialized form of an environment's global scope.
type Snapshot struct {
	Version  int             `cbor:"1,keyasint"`
	Bindings []SnapshotEntry `cbor:"2,keyasint"`
}

// SnapshotEntry is one global binding. Kind disambiguates nil from the
// other kinds since Value carries no Go type of its own.
type SnapshotEntry struct {
	Name   string  `cbor:"1,keyasint"`
	Kind   uint8   `cbor:"2,keyasint"`
	Bool   bool    `cbor:"3,keyasint,omitempty"`
	Number float64 `cbor:"4,keyasint,omitempty"`
	Text   string  `cbor:"5,keyasint,omitempty"`
}

// MarshalGlobals serializes the global bindings of env to CBOR bytes.
func MarshalGlobals(env *Environment) ([]byte, error) {
	snap := Snapshot{Version: snapshotVersion}
	for _, b := range env.Globals() {
		entry := SnapshotEntry{Name: b.Name, Kind: uint8(b.Value.Kind())}
		switch b.Value.Kind() {
		case value.KindBool:
			entry.Bool = b.Value.AsBool()
		case value.KindNumber:
			entry.Number = b.Value.AsNumber()
		case value.KindString:
			entry.Text = b.Value.AsString()
		}
		snap.Bindings = append(snap.Bindings, entry)
	}
	return cborEncMode.Marshal(&snap)
}

// UnmarshalGlobals decodes CBOR bytes produced by MarshalGlobals and defines
// every binding in env's global scope. Existing globals with other names are
// left alone.
func UnmarshalGlobals(env *Environment, data []byte) error {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("interpreter: unmarshal snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("interpreter: snapshot version %d, want %d", snap.Version, snapshotVersion)
	}

	for _, e := range snap.Bindings {
		var v value.Value
		switch value.Kind(e.Kind) {
		case value.KindNil:
			v = value.Nil
		case value.KindBool:
			v = value.Bool(e.Bool)
		case value.KindNumber:
			v = value.Number(e.Number)
		case value.KindString:
			v = value.String(e.Text)
		default:
			return fmt.Errorf("interpreter: snapshot binding %q has unknown kind %d", e.Name, e.Kind)
		}
		env.scopes[0][e.Name] = v
	}
	return nil
}

// SaveSnapshot writes the global bindings of env to w.
func SaveSnapshot(w io.Writer, env *Environment) error {
	data, err := MarshalGlobals(env)
	if err != nil {
		return fmt.Errorf("interpreter: marshal snapshot: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// LoadSnapshot reads a snapshot from r into env.
func LoadSnapshot(r io.Reader, env *Environment) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("interpreter: read snapshot: %w", err)
	}
	return UnmarshalGlobals(env, data)
}
