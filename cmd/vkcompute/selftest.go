package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/vkcompute"
)

var (
	selftestShader string
	selftestSize   int
)

// selftestCmd exercises the whole dispatch protocol: context
// construction, cache population, prologue, buffer binding, epilogue,
// flush. With no shader it stops after the buffer round trip.
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run a dispatch through the compute context",
	RunE: func(cmd *cobra.Command, args []string) error {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		ctx, err := vkcompute.Default()
		if err != nil {
			return err
		}

		buf, err := ctx.NewStorageBuffer(selftestSize * 4)
		if err != nil {
			return err
		}
		defer buf.Destroy()

		data, err := buf.Map()
		if err != nil {
			return err
		}
		for i := range data {
			data[i] = byte(i)
		}
		fmt.Printf("allocated and mapped %d bytes\n", len(data))

		if selftestShader == "" {
			fmt.Println("no --shader given; skipping dispatch")
			return nil
		}

		shader, err := vkcompute.LoadShaderDescriptor(selftestShader)
		if err != nil {
			return err
		}

		thread, err := ctx.Thread()
		if err != nil {
			return err
		}
		cb, err := thread.Command.Stream()
		if err != nil {
			return err
		}

		signature := vkcompute.LayoutSignature{vk.DescriptorTypeStorageBuffer}
		set, err := ctx.DispatchPrologue(cb, signature, shader, vkcompute.WorkGroup{X: 64, Y: 1, Z: 1})
		if err != nil {
			return err
		}
		if err := set.BindBuffer(0, buf); err != nil {
			return err
		}

		global := vkcompute.WorkGroup{X: uint32((selftestSize + 63) / 64), Y: 1, Z: 1}
		if err := ctx.DispatchEpilogue(cb, set, global); err != nil {
			return err
		}

		if err := ctx.Flush(); err != nil {
			return err
		}
		fmt.Printf("dispatched %d invocations and flushed\n", global.Invocations()*64)
		return nil
	},
}

func init() {
	selftestCmd.Flags().StringVar(&selftestShader, "shader", "", "path to a compiled SPIR-V compute shader with one storage buffer binding")
	selftestCmd.Flags().IntVar(&selftestSize, "size", 1024, "element count of the test buffer")
	rootCmd.AddCommand(selftestCmd)
}
