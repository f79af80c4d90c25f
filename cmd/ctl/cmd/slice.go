package cmd

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/mprview/mprview/pkg/mpr"
	"github.com/mprview/mprview/pkg/study"
)

// NewSliceCmd renders one cross-sectional slice of a study as a 16-bit PNG
func NewSliceCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slice",
		Short: "Render a cross-sectional slice to PNG",
		Long:  "Loads a DICOM series, reslices the assembled volume along the requested plane, and writes the result as a 16-bit grayscale PNG.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				return fmt.Errorf("series directory is required. Use --dir flag")
			}
			planeName, _ := cmd.Flags().GetString("plane")
			plane, err := mpr.ParsePlane(planeName)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := study.Load(ctx, dir, cfg)
			if err != nil {
				return err
			}

			cs := mpr.NewCoordinateSystem(st.Volume)
			index, _ := cmd.Flags().GetInt("index")
			if index < 0 {
				index = cs.SliceIndex(plane)
			}
			grid, err := mpr.ExtractSlice(st.Volume, plane, index)
			if err != nil {
				return err
			}

			min, max := st.Volume.MinMax()
			img := gridToGray16(grid, min, max)
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := png.Encode(f, img); err != nil {
				return err
			}
			fmt.Printf("wrote %s plane %s index %d (%dx%d) to %s\n",
				dir, plane, index, grid.Width, grid.Height, out)
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("dir", "d", "", "directory containing the DICOM series")
	pf.StringP("plane", "p", "axial", "slice plane: axial, coronal or sagittal")
	pf.IntP("index", "i", -1, "slice index, defaults to the volume center")
	pf.StringP("out", "o", "slice.png", "output PNG path")
	return cmd
}

// gridToGray16 windows the raw sample range onto the full 16-bit gray scale.
func gridToGray16(grid *mpr.SliceGrid, min, max int16) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, grid.Width, grid.Height))
	span := int(max) - int(min)
	if span <= 0 {
		span = 1
	}
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			v := int(grid.Samples[y*grid.Width+x]) - int(min)
			scaled := v * 0xFFFF / span
			i := img.PixOffset(x, y)
			img.Pix[i] = byte(scaled >> 8)
			img.Pix[i+1] = byte(scaled)
		}
	}
	return img
}
