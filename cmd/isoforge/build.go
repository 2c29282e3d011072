package main

import (
	"encoding/hex"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/discforge/isoforge/internal/image"
)

var (
	buildOutput string
	buildFlags  *commonOptionFlags
)

var buildCmd = &cobra.Command{
	Use:   "build SOURCE_DIR",
	Short: "Build a disc image from a source directory tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	buildFlags = registerCommonFlags(buildCmd)
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "output.iso", "path to write the image to")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	sourceDir := args[0]
	opts, err := buildFlags.toImageOptions()
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"source": sourceDir, "output": buildOutput}).Info("scanning source tree")
	img, err := image.NewImage(sourceDir, opts)
	if err != nil {
		return err
	}

	out, err := os.Create(buildOutput)
	if err != nil {
		return err
	}
	defer out.Close()

	result, err := img.Build(out)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"blocks": result.TotalBlocks,
		"bytes":  int64(result.TotalBlocks) * 2048,
		"md5":    hex.EncodeToString(result.MD5[:]),
	}).Info("image built")
	return nil
}
