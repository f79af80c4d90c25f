package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mprview/mprview/pkg/dicom"
	"github.com/mprview/mprview/pkg/rtstruct"
)

// NewRoiCmd extracts and lists ROI structures from one annotation file
func NewRoiCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roi",
		Short: "List ROI structures in an RT structure set",
		Long:  "Decodes an RT Structure Set file and lists every extracted structure with its contours and plane depths.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			if path == "" && len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("file path is required. Use --file flag or provide as argument")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ds, err := dicom.ReadFile(path)
			if err != nil {
				return err
			}

			opts := rtstruct.Options{
				GroupGapMM:      cfg.Structures.GroupGapMM,
				DedupDepthTolMM: cfg.Structures.DedupDepthTolMM,
			}
			structures, err := rtstruct.ExtractWith(ds, opts)
			if errors.Is(err, rtstruct.ErrNoContourData) {
				fmt.Println("no contour data")
				return nil
			}
			if err != nil {
				return err
			}

			for _, s := range structures {
				r, g, b := int(s.Color[0]*255), int(s.Color[1]*255), int(s.Color[2]*255)
				fmt.Printf("[%d] %s  color #%02X%02X%02X  %d contours\n",
					s.Number, s.Name, r, g, b, len(s.Contours))
				verbose, _ := cmd.Flags().GetBool("verbose")
				if !verbose {
					continue
				}
				for _, c := range s.Contours {
					fmt.Printf("    depth %.2fmm  %d points\n", c.Depth, len(c.Points))
				}
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "RT structure set file path")
	pf.BoolP("verbose", "v", false, "list every contour")
	return cmd
}
