package cmd

import (
	"github.com/spf13/cobra"

	rlmerr "github.com/rlmtools/rlm/internal/errors"
	"github.com/rlmtools/rlm/internal/store"
)

// newVarCmd builds the `var` or `global` verb for a scope: set with a
// value, get without, remove with --delete.
func newVarCmd(a *app, scope store.VarScope) *cobra.Command {
	use, short := "var", "Get or set a context variable"
	if scope == store.ScopeGlobal {
		use, short = "global", "Get or set a global variable"
	}

	var del bool

	cmd := &cobra.Command{
		Use:   use + " <name> [value]",
		Short: short,
		Args:  wrapArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			name := args[0]

			if del {
				existed, err := s.DeleteVariable(ctx, scope, name)
				if err != nil {
					return a.renderError(err)
				}
				if existed {
					a.writer.Success("deleted %s", name)
				} else {
					a.writer.Dim("%s was not set", name)
				}
				return a.writer.JSON(map[string]any{
					"name":    name,
					"scope":   string(scope),
					"deleted": existed,
				})
			}

			if len(args) == 2 {
				value := store.ParseValue(args[1])
				if err := s.SetVariable(ctx, scope, name, value); err != nil {
					return a.renderError(err)
				}
				a.writer.Success("%s = %s (%s)", name, value.String(), value.Type)
				return a.writer.JSON(map[string]any{
					"name":  name,
					"scope": string(scope),
					"value": value,
					"type":  value.Type,
				})
			}

			value, err := s.GetVariable(ctx, scope, name)
			if err != nil {
				return a.renderError(err)
			}
			if value == nil {
				return a.renderError(rlmerr.Newf(rlmerr.ErrCodeInvalidInput, "variable not set: %s", name))
			}
			a.writer.Line("%s", value.String())
			return a.writer.JSON(map[string]any{
				"name":  name,
				"scope": string(scope),
				"value": value,
				"type":  value.Type,
			})
		},
	}

	cmd.Flags().BoolVarP(&del, "delete", "d", false, "Delete the variable")
	return cmd
}
