package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/temple-recon/internal/recon"
)

var (
	modelIDFlag         string
	modelFilesFlag      []string
	logFileFlag         string
	evalFileFlag        string
	nerfstudioDataFlag  string
	nerfstudioModelFlag string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <reconstruction-id> <group-id>",
	Short: "Upload a group's model artifact and auxiliary files",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()

		bundle, closeAll, err := buildBundle()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open upload files")
		}
		defer closeAll()

		err = c.registry.UploadGroupModel(context.Background(), c.client,
			args[0], args[1], modelIDFlag, c.cfg.Period, bundle)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to upload group model")
		}
		c.persist()
	},
}

func init() {
	uploadCmd.Flags().StringVar(&modelIDFlag, "model-id", "", "Model identifier (required)")
	uploadCmd.Flags().StringSliceVar(&modelFilesFlag, "files", nil, "Primary model files")
	uploadCmd.Flags().StringVar(&logFileFlag, "log", "", "Processing log file")
	uploadCmd.Flags().StringVar(&evalFileFlag, "eval", "", "Evaluation file")
	uploadCmd.Flags().StringVar(&nerfstudioDataFlag, "nerfstudio-data", "", "Nerfstudio data bundle")
	uploadCmd.Flags().StringVar(&nerfstudioModelFlag, "nerfstudio-model", "", "Nerfstudio model bundle")
}

// buildBundle opens the flagged files into an upload bundle. The returned
// closer releases every opened handle.
func buildBundle() (recon.UploadBundle, func(), error) {
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	open := func(path string) (*recon.FilePart, error) {
		if path == "" {
			return nil, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		opened = append(opened, f)
		return &recon.FilePart{Filename: filepath.Base(path), Reader: f}, nil
	}

	var bundle recon.UploadBundle
	for _, path := range modelFilesFlag {
		if path == "" {
			continue
		}
		part, err := open(path)
		if err != nil {
			closeAll()
			return recon.UploadBundle{}, nil, err
		}
		bundle.ModelFiles = append(bundle.ModelFiles, *part)
	}

	var err error
	if bundle.Log, err = open(logFileFlag); err != nil {
		closeAll()
		return recon.UploadBundle{}, nil, err
	}
	if bundle.Eval, err = open(evalFileFlag); err != nil {
		closeAll()
		return recon.UploadBundle{}, nil, err
	}
	if bundle.NerfstudioData, err = open(nerfstudioDataFlag); err != nil {
		closeAll()
		return recon.UploadBundle{}, nil, err
	}
	if bundle.NerfstudioModel, err = open(nerfstudioModelFlag); err != nil {
		closeAll()
		return recon.UploadBundle{}, nil, err
	}

	return bundle, closeAll, nil
}
