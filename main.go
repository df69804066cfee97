package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bbb/vm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bbb",
		Short:         "Assembler, image inspector, and runner for the bbb machine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newAssembleCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newRunCmd())
	return root
}

func newAssembleCmd() *cobra.Command {
	var verbose bool
	var output string

	cmd := &cobra.Command{
		Use:   "assemble SOURCE...",
		Short: "Assemble one or more source files into a bootable image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, diags, err := vm.AssembleFiles(args...)
			for _, d := range diags {
				fmt.Fprintln(os.Stderr, d.String())
			}
			if err != nil {
				if errors.Is(err, vm.ErrUnresolvedLabel) {
					os.Exit(2)
				}
				os.Exit(1)
			}

			// The assembler has no directive for initial register values, so
			// the image header defaults to all zeros - PC at the start of
			// code, matching the original machine's own power-on state.
			img := vm.BuildImage(code, vm.ImageHeader{})
			if err := os.WriteFile(output, img, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			if verbose {
				fmt.Fprintf(os.Stderr, "wrote %s: %d byte(s) of code, %d byte(s) total\n", output, len(code), len(img))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "report image size on success")
	cmd.Flags().StringVarP(&output, "output", "o", "a.img", "output image path")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect IMAGE",
		Short: "Print an image's header fields and a hex+ASCII dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			hdr, err := vm.DecodeImageHeader(data)
			if err != nil {
				return err
			}
			fmt.Printf("PC=%04X SP=%04X IV=%04X IX=%04X TA=%04X\n", hdr.PC, hdr.SP, hdr.IV, hdr.IX, hdr.TA)
			fmt.Println()
			hexdump(data[vm.ImageHeaderNibbles:])
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "run IMAGE",
		Short: "Load and execute an image to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			cfg := vm.DefaultConfig()
			c := vm.NewCPUWithConfig(cfg)

			keys, err := vm.NewTerminalKeySource()
			if err != nil {
				return fmt.Errorf("open terminal: %w", err)
			}
			bridge := vm.NewBridge(keys, cfg)
			bridge.Install(c)
			defer c.Close()

			if !debug {
				update := c.EventUpdate
				c.EventUpdate = func(c *vm.CPU) {
					update(c)
					vm.Render(os.Stdout, c)
				}
			}

			if err := c.Start(data); err != nil {
				return err
			}

			if debug {
				c.RunDebug()
			} else {
				c.Run()
			}

			if fault := c.LastFault(); fault != "" {
				fmt.Fprintf(os.Stderr, "halted: %s (pc=%04X, %d instruction(s) executed)\n", fault, c.PC(), c.InstructionsExecuted())
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "halted cleanly (%d instruction(s) executed)\n", c.InstructionsExecuted())
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable the single-step/breakpoint console")
	return cmd
}

// hexdump prints data sixteen bytes per row as hex followed by its ASCII
// rendering, the conventional layout inspect uses for the code region past
// an image's header.
func hexdump(data []byte) {
	for offset := 0; offset < len(data); offset += 16 {
		end := offset + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[offset:end]

		fmt.Printf("%08x  ", offset)
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Printf("%02x ", row[i])
			} else {
				fmt.Print("   ")
			}
			if i == 7 {
				fmt.Print(" ")
			}
		}
		fmt.Print(" |")
		for _, b := range row {
			if b >= 0x20 && b < 0x7f {
				fmt.Printf("%c", b)
			} else {
				fmt.Print(".")
			}
		}
		fmt.Println("|")
	}
}
