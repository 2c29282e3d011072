package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discforge/isoforge/internal/image"
)

var predictSizeFlags *commonOptionFlags

var predictSizeCmd = &cobra.Command{
	Use:   "predict-size SOURCE_DIR",
	Short: "Report the block and byte size a build with the given flags would produce, without writing an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runPredictSize,
}

func init() {
	predictSizeFlags = registerCommonFlags(predictSizeCmd)
	rootCmd.AddCommand(predictSizeCmd)
}

func runPredictSize(cmd *cobra.Command, args []string) error {
	opts, err := predictSizeFlags.toImageOptions()
	if err != nil {
		return err
	}

	img, err := image.NewImage(args[0], opts)
	if err != nil {
		return err
	}

	blocks, err := img.PredictSize()
	if err != nil {
		return err
	}

	fmt.Printf("%d blocks (%d bytes)\n", blocks, int64(blocks)*2048)
	return nil
}
