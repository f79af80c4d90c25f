package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mprview/mprview/pkg/config"
	"github.com/mprview/mprview/pkg/dicom"
)

// NewDecodeCmd dumps a single decoded dataset
func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "DICOM decode",
		Long:  "decodes one DICOM file and dumps its elements",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader
			path, _ := cmd.Flags().GetString("file")
			path = strings.TrimPrefix(path, "file://")
			if path == "" && len(args) > 0 {
				path = args[0]
			}
			switch {
			case path == "-":
				in = os.Stdin
			case path == "":
				return fmt.Errorf("file path is required. Use --file flag or provide as argument")
			default:
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open file: %v", err)
				}
				in = f
				defer f.Close()
			}

			dataset, err := dicom.Parse(in)
			if err != nil {
				return err
			}
			switch format, _ := cmd.Flags().GetString("format"); format {
			case "text": // Dataset will nicely print the element list out of the box.
				fmt.Println(dataset)
			default: // Dataset is also JSON serializable out of the box.
				j, _ := json.Marshal(dataset)
				os.Stdout.Write(j)
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "DICOM file path (- for stdin)")
	pf.StringP("format", "o", "json", "output format (text|json)")
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
