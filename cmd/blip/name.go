package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blip/internal/app/registry"
)

var nameCmd = &cobra.Command{
	Use:   "name",
	Short: "Check or claim a display name",
}

var nameCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Check whether a display name is available",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := openViewer()
		defer v.close()

		res := v.profile.CheckName(cmd.Context(), args[0])
		if res.Valid {
			okColor.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		}
		errColor.Fprintln(cmd.OutOrStdout(), res.Message)
		return nil
	},
}

var nameSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Claim a display name",
	Long:  "Claim a display name for this identity. Style flags are optional; without them the current style is kept.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := openViewer()
		defer v.close()

		rec, err := v.profile.SetName(cmd.Context(), args[0], styleFromFlags(cmd))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "You are now %s\n", renderName(rec.DisplayName, rec.NameStyle))
		return nil
	},
}

// styleFromFlags returns nil unless a color was given.
func styleFromFlags(cmd *cobra.Command) *registry.NameStyle {
	hex, _ := cmd.Flags().GetString("color")
	if hex == "" {
		return nil
	}

	styleType, _ := cmd.Flags().GetString("type")
	effect, _ := cmd.Flags().GetString("effect")
	weight, _ := cmd.Flags().GetString("font-weight")

	return &registry.NameStyle{Type: styleType, Color: hex, Effect: effect, FontWeight: weight}
}

func init() {
	nameCmd.AddCommand(nameCheckCmd)
	nameCmd.AddCommand(nameSetCmd)

	nameSetCmd.Flags().String("color", "", "Name color as #rrggbb")
	nameSetCmd.Flags().String("type", "solid", "Style type")
	nameSetCmd.Flags().String("effect", "", "Style effect")
	nameSetCmd.Flags().String("font-weight", "", "Font weight, e.g. bold or 700")
}
