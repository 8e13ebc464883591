package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/wnxd/hnx"
	"github.com/wnxd/hnx/internal/manifest"
	"github.com/wnxd/hnx/internal/wire"
	"github.com/wnxd/hnx/kernel"
	"go.uber.org/zap"
)

var (
	showHost bool
	runABI   string
	runOut   string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the kernel ABI version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := cfg.KernelVersion()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "hnx %s (packed %#08x)\n", v, v.Packed())
		if !showHost {
			return nil
		}
		info, err := kernel.Sysinfo()
		if err != nil {
			return fmt.Errorf("failed to query host: %w", err)
		}
		fmt.Fprintf(out, "host: %d MiB available of %d MiB, %d processes, up %ds\n",
			info.AvailableRAM>>20, info.TotalRAM>>20, info.Procs, info.Uptime)
		return nil
	},
}

var syscallsCmd = &cobra.Command{
	Use:   "syscalls",
	Short: "List the syscall registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := newKernel()
		if err != nil {
			return err
		}
		defer k.Close()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NR\tNAME\tBAND\tDOMAIN\tMIN\tARGS")
		for _, d := range k.Syscall().Descriptors() {
			fmt.Fprintf(tw, "%#06x\t%s\t%s\t%s\t0.%d\t%s\n",
				uint32(d.NR), d.Name, d.Band.Name, d.Domain(), d.MinMinor, formatArgs(d.Args))
		}
		return tw.Flush()
	},
}

func formatArgs(args []kernel.Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.Kind == kernel.ArgHandle {
			parts[i] = fmt.Sprintf("%s:%s/%s", a.Name, a.Type, a.Rights)
		} else {
			parts[i] = a.Name
		}
	}
	return strings.Join(parts, ", ")
}

func entries(k *kernel.Kernel) []manifest.Entry {
	descs := k.Syscall().Descriptors()
	list := make([]manifest.Entry, len(descs))
	for i, d := range descs {
		list[i] = manifest.Entry{
			Name:   d.Name,
			NR:     uint32(d.NR),
			Band:   d.Band.Name,
			Domain: d.Domain().String(),
		}
	}
	return list
}

var abiCmd = &cobra.Command{
	Use:   "abi",
	Short: "Publish or verify the abi.toml manifest",
}

var abiDumpCmd = &cobra.Command{
	Use:   "dump [abi.toml]",
	Short: "Write the registry as an ABI manifest (stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := newKernel()
		if err != nil {
			return err
		}
		defer k.Close()
		m := manifest.New(k.Version().String(), entries(k))
		if len(args) == 0 {
			return m.Write(cmd.OutOrStdout())
		}
		return m.Save(args[0])
	},
}

var abiVerifyCmd = &cobra.Command{
	Use:   "verify <abi.toml>",
	Short: "Check a published manifest against the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := manifest.Load(args[0])
		if err != nil {
			return err
		}
		k, err := newKernel()
		if err != nil {
			return err
		}
		defer k.Close()
		published, err := hnx.ParseVersion(m.ABI.Version)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if !k.Version().CheckCompatible(published.Major, published.Minor) {
			return fmt.Errorf("%s: manifest version %s is not served by kernel %s", args[0], published, k.Version())
		}
		if err := m.Verify(entries(k)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ABI manifest is consistent")
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <version>",
	Short: "Report whether a client declaring version may attach",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := hnx.ParseVersion(args[0])
		if err != nil {
			return err
		}
		kv, err := cfg.KernelVersion()
		if err != nil {
			return err
		}
		if !kv.CheckCompatible(caller.Major, caller.Minor) {
			return fmt.Errorf("client %s is incompatible with kernel %s: %w", caller, kv, hnx.ErrAbiMismatch)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "client %s is compatible with kernel %s\n", caller, kv)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <frames.cbor>",
	Short: "Replay CBOR request frames against a fresh client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("cannot open %s: %w", args[0], err)
		}
		defer f.Close()

		var enc *wire.Encoder
		if runOut != "" {
			out, err := os.Create(runOut)
			if err != nil {
				return fmt.Errorf("cannot create %s: %w", runOut, err)
			}
			defer out.Close()
			enc = wire.NewEncoder(out)
		}

		k, err := newKernel(kernel.WithConsole(cmd.InOrStdin(), cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer k.Close()
		abi := k.Version()
		if runABI != "" {
			if abi, err = hnx.ParseVersion(runABI); err != nil {
				return err
			}
		}
		client, err := k.Attach(abi)
		if err != nil {
			return err
		}
		defer client.Close()

		return replay(cmd.Context(), client, wire.NewDecoder(f), enc, cmd.OutOrStdout())
	},
}

func replay(ctx context.Context, client hnx.Client, dec *wire.Decoder, enc *wire.Encoder, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for i := 0; ; i++ {
		req, err := dec.ReadRequest()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		resp := client.Syscall(ctx, req)
		logger.Debug("replayed", zap.Int("frame", i), zap.Uint32("nr", uint32(req.NR)), zap.Int32("code", resp.Code))
		fmt.Fprintf(w, "%d\t%#06x\tcode=%d\tout=%v\tdata=%q\n", i, uint32(req.NR), resp.Code, resp.Out, resp.Data)
		if enc != nil {
			if err := enc.WriteResponse(resp); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
	}
}
