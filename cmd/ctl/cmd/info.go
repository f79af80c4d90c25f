package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mprview/mprview/pkg/study"
)

// NewInfoCmd loads a study directory and summarizes it
func NewInfoCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Summarize a study directory",
		Long:  "Loads every DICOM file in a directory, assembles the volume and reports study, patient and geometry metadata.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" && len(args) > 0 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("study directory is required. Use --dir flag or provide as argument")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := study.Load(ctx, dir, cfg)
			if err != nil {
				return err
			}

			fmt.Printf("Load session: %s\n\n", st.ID)
			fmt.Println("=== Patient ===")
			fmt.Printf("Name: %s\n", st.Patient.PatientName.Display())
			fmt.Printf("ID: %s\n", st.Patient.PatientID)
			fmt.Printf("Sex: %s\n", st.Patient.PatientSex)
			fmt.Println()
			fmt.Println("=== Study ===")
			fmt.Printf("UID: %s\n", st.Info.StudyInstanceUID)
			fmt.Printf("Date: %s\n", st.Info.StudyDate)
			fmt.Printf("Description: %s\n", st.Info.StudyDescription)
			fmt.Printf("Series: %s (%s)\n", st.Series.SeriesDescription, st.Series.Modality)
			fmt.Println()
			fmt.Println("=== Volume ===")
			fmt.Printf("Grid: %s\n", st.Volume)
			min, max := st.Volume.MinMax()
			fmt.Printf("Intensity range: [%d, %d]\n", min, max)
			fmt.Printf("Structures: %d\n", len(st.Structures))
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("dir", "d", "", "study directory")
	return cmd
}
