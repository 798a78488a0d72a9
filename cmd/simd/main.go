package main

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"math/rand"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/simd/compiler"
	"github.com/slowlang/simd/compiler/build"
	"github.com/slowlang/simd/compiler/devinfo"
	"github.com/slowlang/simd/compiler/ir"
	"github.com/slowlang/simd/compiler/sim"
)

func main() {
	deviceFlags := []*cli.Flag{
		cli.NewFlag("device,d", "tgl", "device preset"),
		cli.NewFlag("device-file", "", "device description yaml, overrides --device"),
		cli.NewFlag("width,w", 16, "dispatch width"),
		cli.NewFlag("seed", 1, "random seed for the simulated inputs"),
	}

	devicesCmd := &cli.Command{
		Name:        "devices",
		Description: "list built-in device presets",
		Action:      devicesAct,
		Flags: []*cli.Flag{
			cli.NewFlag("yaml", false, "print presets in the device file format"),
		},
	}

	scanCmd := &cli.Command{
		Name:        "scan",
		Description: "build, validate and simulate an inclusive cluster scan",
		Action:      scanAct,
		Flags: append([]*cli.Flag{
			cli.NewFlag("cluster,c", 0, "cluster size, 0 means the whole dispatch width"),
			cli.NewFlag("type,t", "D", "element type"),
			cli.NewFlag("op", "min", "scan operation: min, max, add, mul"),
		}, deviceFlags...),
	}

	lrpCmd := &cli.Command{
		Name:        "lrp",
		Description: "build, validate and simulate a linear interpolation",
		Action:      lrpAct,
		Flags:       deviceFlags,
	}

	checkCmd := &cli.Command{
		Name:        "check",
		Description: "parse device description files",
		Action:      checkAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "simd",
		Description: "simd builds and checks SIMD shader instruction sequences",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
		},
		Commands: []*cli.Command{
			devicesCmd,
			scanCmd,
			lrpCmd,
			checkCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	if v := c.String("verbosity"); v != "" {
		tlog.SetVerbosity(v)
	}

	return nil
}

func devicesAct(c *cli.Command) (err error) {
	for _, name := range devinfo.Names() {
		d, err := devinfo.Lookup(name)
		if err != nil {
			return errors.Wrap(err, "lookup %v", name)
		}

		if c.Bool("yaml") {
			data, err := d.Marshal()
			if err != nil {
				return errors.Wrap(err, "marshal %v", name)
			}

			fmt.Printf("---\n%s", data)

			continue
		}

		fmt.Printf("%-4s  ver %2d  verx10 %3d  int64 %-5v  float64 %-5v  workarounds %v\n",
			d.Name, d.Ver, d.VerX10, d.Has64bitInt, d.Has64bitFloat, workarounds(d))
	}

	return nil
}

func scanAct(c *cli.Command) (err error) {
	ctx := tlog.ContextWithSpan(context.Background(), tlog.Root())

	sh, err := shader(c)
	if err != nil {
		return err
	}

	typ, err := ir.ParseType(c.String("type"))
	if err != nil {
		return errors.Wrap(err, "type")
	}

	if !typ.IsInt() {
		return errors.New("scan type must be an integer: %v", typ)
	}

	op, cond, err := scanOp(c.String("op"))
	if err != nil {
		return err
	}

	cluster := c.Int("cluster")
	if cluster == 0 {
		cluster = sh.DispatchWidth
	}

	if cluster < 1 || cluster > sh.DispatchWidth || bits.OnesCount(uint(cluster)) != 1 {
		return errors.New("bad cluster size %d for SIMD%d", cluster, sh.DispatchWidth)
	}

	if typ.Size() == 8 && op == ir.OpADD && (!sh.Dev.Has64bitInt || sh.Dev.Ver >= 20) {
		return errors.New("64-bit add scan is not supported on %v", sh.Dev.Name)
	}

	var buf ir.Reg

	err = compiler.Run(ctx, sh, compiler.Pass{
		Name: "scan",
		Run: func(ctx context.Context, sh *ir.Shader) error {
			b := build.New(sh).Annotate("scan", nil)

			buf = b.VGRF(typ, 1)
			b.Scan(op, buf, cluster, cond)

			return nil
		},
	})
	if err != nil {
		return errors.Wrap(err, "compile")
	}

	printShader(sh)

	rnd := rand.New(rand.NewSource(int64(c.Int("seed"))))
	m := sim.New(sh)

	in := make([]uint64, sh.DispatchWidth)

	for i := range in {
		in[i] = uint64(rnd.Int63n(1000))

		err = m.Store(buf, i, in[i])
		if err != nil {
			return errors.Wrap(err, "store channel %d", i)
		}
	}

	err = m.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "simulate")
	}

	fmt.Printf("\n%d steps\n", m.Steps)

	for i, x := range in {
		y, err := m.Load(buf, i)
		if err != nil {
			return errors.Wrap(err, "load channel %d", i)
		}

		fmt.Printf("%3d  %20d  %20d\n", i, x, y)
	}

	return nil
}

func lrpAct(c *cli.Command) (err error) {
	ctx := tlog.ContextWithSpan(context.Background(), tlog.Root())

	sh, err := shader(c)
	if err != nil {
		return err
	}

	var x, y, a, dst ir.Reg

	err = compiler.Run(ctx, sh, compiler.Pass{
		Name: "lrp",
		Run: func(ctx context.Context, sh *ir.Shader) error {
			b := build.New(sh).Annotate("lrp", nil)

			x = b.VGRF(ir.F, 1)
			y = b.VGRF(ir.F, 1)
			a = b.VGRF(ir.F, 1)
			dst = b.VGRF(ir.F, 1)

			b.Lrp(dst, x, y, a)

			return nil
		},
	})
	if err != nil {
		return errors.Wrap(err, "compile")
	}

	printShader(sh)

	rnd := rand.New(rand.NewSource(int64(c.Int("seed"))))
	m := sim.New(sh)

	type row struct{ x, y, a float32 }

	rows := make([]row, sh.DispatchWidth)

	for i := range rows {
		r := row{x: rnd.Float32() * 100, y: rnd.Float32() * 100, a: rnd.Float32()}
		rows[i] = r

		for _, s := range []struct {
			reg ir.Reg
			val float32
		}{{x, r.x}, {y, r.y}, {a, r.a}} {
			err = m.Store(s.reg, i, uint64(math.Float32bits(s.val)))
			if err != nil {
				return errors.Wrap(err, "store channel %d", i)
			}
		}
	}

	err = m.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "simulate")
	}

	fmt.Printf("\n%d steps\n", m.Steps)

	for i, r := range rows {
		v, err := m.Load(dst, i)
		if err != nil {
			return errors.Wrap(err, "load channel %d", i)
		}

		fmt.Printf("%3d  lrp(%8.3f, %8.3f, %5.3f) = %8.3f\n", i, r.x, r.y, r.a, math.Float32frombits(uint32(v)))
	}

	return nil
}

func checkAct(c *cli.Command) (err error) {
	if len(c.Args) == 0 {
		return errors.New("no device files")
	}

	for _, name := range c.Args {
		d, err := devinfo.Load(name)
		if err != nil {
			return errors.Wrap(err, "load")
		}

		fmt.Printf("%v: %v ver %d verx10 %d rev %d workarounds %v\n", name, d.Name, d.Ver, d.VerX10, d.Revision, workarounds(d))
	}

	return nil
}

func shader(c *cli.Command) (*ir.Shader, error) {
	var dev *devinfo.Info
	var err error

	if f := c.String("device-file"); f != "" {
		dev, err = devinfo.Load(f)
	} else {
		dev, err = devinfo.Lookup(c.String("device"))
	}
	if err != nil {
		return nil, errors.Wrap(err, "device")
	}

	width := c.Int("width")

	switch width {
	case 8, 16, 32:
	default:
		return nil, errors.New("unsupported dispatch width: %d", width)
	}

	return ir.NewShader(dev, "cs", width), nil
}

func scanOp(name string) (ir.Opcode, ir.CondMod, error) {
	switch name {
	case "min":
		return ir.OpSEL, ir.CondL, nil
	case "max":
		return ir.OpSEL, ir.CondGE, nil
	case "add":
		return ir.OpADD, ir.CondNone, nil
	case "mul":
		return ir.OpMUL, ir.CondNone, nil
	}

	return 0, 0, errors.New("unknown scan op: %v", name)
}

func workarounds(d *devinfo.Info) []string {
	var l []string

	d.Workarounds.Range(func(w int) bool {
		l = append(l, devinfo.Workaround(w).String())
		return true
	})

	return l
}

func printShader(sh *ir.Shader) {
	sh.CFG.Range(func(b *ir.Block, inst *ir.Inst) bool {
		fmt.Printf("%v\n", inst)
		return true
	})
}
