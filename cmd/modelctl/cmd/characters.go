package cmd

import (
	"fmt"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/repository/implementation"

	"github.com/spf13/cobra"
)

var charactersCmd = &cobra.Command{
	Use:   "characters",
	Short: "List presets in the preset file",
	Long:  `List presets in the preset file. A missing file is seeded with the defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := implementation.NewCharacterRepository(cfg.Characters.FilePath)
		if _, err := repo.Load(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load %s: %w", cfg.Characters.FilePath, err)
		}

		characters := repo.FindAll(cmd.Context())
		fmt.Println(headerStyle.Render(fmt.Sprintf("%d characters in %s", len(characters), cfg.Characters.FilePath)))
		for _, c := range characters {
			line := nameStyle.Render(c.Name) + " " + mutedStyle.Render("("+c.Key+")")
			if constant.IsProtectedCharacter(c.Key) {
				line += " " + mutedStyle.Render("built-in")
			}
			fmt.Println("  " + line)
			fmt.Println("    " + c.Role)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(charactersCmd)
}
