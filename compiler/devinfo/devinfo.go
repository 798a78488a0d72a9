// Package devinfo describes the capabilities of a target device:
// hardware generation, stepping and the hardware workarounds it needs.
package devinfo

import (
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/simd/compiler/set"
)

type (
	Info struct {
		Name     string
		Ver      int
		VerX10   int
		Revision int

		Has64bitInt   bool
		Has64bitFloat bool

		Workarounds set.Bitmap
	}

	// Workaround is a hardware workaround known to the compiler.
	Workaround int

	yamlInfo struct {
		Name          string   `yaml:"name"`
		Ver           int      `yaml:"ver"`
		VerX10        int      `yaml:"verx10"`
		Revision      int      `yaml:"revision"`
		Has64bitInt   bool     `yaml:"has_64bit_int"`
		Has64bitFloat bool     `yaml:"has_64bit_float"`
		Workarounds   []string `yaml:"workarounds"`
	}
)

const (
	// Wa14014617373: accumulator destination at offset 0 needs hstride 1.
	Wa14014617373 Workaround = iota
	// Wa22016140776: no scalar broadcast of HF sources in math instructions.
	Wa22016140776

	workaroundCount
)

var workaroundIDs = [...]string{
	Wa14014617373: "14014617373",
	Wa22016140776: "22016140776",
}

// Presets are illustrative. They carry only the fields the builder and
// validator consult and are not a table of shipping parts.
var presets = map[string]yamlInfo{
	"skl": {Name: "skl", Ver: 9, VerX10: 90, Has64bitInt: true, Has64bitFloat: true},
	"icl": {Name: "icl", Ver: 11, VerX10: 110},
	"tgl": {Name: "tgl", Ver: 12, VerX10: 120},
	"dg2": {Name: "dg2", Ver: 12, VerX10: 125, Has64bitInt: true, Workarounds: []string{"14014617373", "22016140776"}},
	"mtl": {Name: "mtl", Ver: 12, VerX10: 125, Has64bitInt: true, Has64bitFloat: true, Workarounds: []string{"14014617373", "22016140776"}},
	"lnl": {Name: "lnl", Ver: 20, VerX10: 200, Has64bitInt: true, Has64bitFloat: true},
}

// Names lists the built-in device presets.
func Names() []string {
	l := make([]string, 0, len(presets))

	for n := range presets {
		l = append(l, n)
	}

	sort.Slice(l, func(i, j int) bool {
		return presets[l[i]].VerX10 < presets[l[j]].VerX10 || presets[l[i]].VerX10 == presets[l[j]].VerX10 && l[i] < l[j]
	})

	return l
}

// Lookup returns a fresh copy of a built-in preset.
func Lookup(name string) (*Info, error) {
	y, ok := presets[name]
	if !ok {
		return nil, errors.New("unknown device: %v", name)
	}

	return y.info()
}

// Load reads a device description from a YAML file.
func Load(name string) (*Info, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	d, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse %v", name)
	}

	return d, nil
}

func Parse(data []byte) (*Info, error) {
	var y yamlInfo

	err := yaml.Unmarshal(data, &y)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}

	if y.Ver == 0 {
		return nil, errors.New("ver is required")
	}

	if y.VerX10 == 0 {
		y.VerX10 = y.Ver * 10
	}

	return y.info()
}

func (y yamlInfo) info() (*Info, error) {
	d := &Info{
		Name:          y.Name,
		Ver:           y.Ver,
		VerX10:        y.VerX10,
		Revision:      y.Revision,
		Has64bitInt:   y.Has64bitInt,
		Has64bitFloat: y.Has64bitFloat,
		Workarounds:   set.MakeBitmap(int(workaroundCount)),
	}

	for _, id := range y.Workarounds {
		w, err := ParseWorkaround(id)
		if err != nil {
			return nil, err
		}

		d.Workarounds.Set(int(w))
	}

	return d, nil
}

func ParseWorkaround(s string) (Workaround, error) {
	for w, id := range workaroundIDs {
		if id == s || "Wa_"+id == s {
			return Workaround(w), nil
		}
	}

	return 0, errors.New("unknown workaround: %v", s)
}

// Needs reports whether the device requires workaround w.
func (d *Info) Needs(w Workaround) bool {
	return d.Workarounds.IsSet(int(w))
}

// Marshal encodes d in the format Parse reads.
func (d *Info) Marshal() ([]byte, error) {
	y := yamlInfo{
		Name:          d.Name,
		Ver:           d.Ver,
		VerX10:        d.VerX10,
		Revision:      d.Revision,
		Has64bitInt:   d.Has64bitInt,
		Has64bitFloat: d.Has64bitFloat,
	}

	d.Workarounds.Range(func(w int) bool {
		y.Workarounds = append(y.Workarounds, Workaround(w).String())

		return true
	})

	return yaml.Marshal(y)
}

func (w Workaround) String() string {
	if w >= 0 && int(w) < len(workaroundIDs) {
		return workaroundIDs[w]
	}

	return strconv.Itoa(int(w))
}

func (d *Info) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 3)

	b = e.AppendString(b, "name")
	b = e.AppendString(b, d.Name)
	b = e.AppendKeyInt(b, "verx10", d.VerX10)
	b = e.AppendKeyInt(b, "rev", d.Revision)

	return b
}
