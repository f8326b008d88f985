package cmd

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/config"
	"github.com/spf13/cobra"
)

func modulesCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "show an info about the chain modules",
		RunE:  noCommand,
	}

	cmd.AddCommand(
		showModulesCmd(ctx),
	)

	return cmd
}

func showModulesCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Shows the chain modules included in the relayer and the configured lanes using them",
		RunE: func(cmd *cobra.Command, args []string) error {
			bi, _ := debug.ReadBuildInfo()
			lines := make([]string, 0, len(ctx.Modules))
			for _, m := range ctx.Modules {
				version := moduleVersion(bi, m)
				lanes := lanesOfChainType(ctx.Config, m.Name())
				lines = append(lines, fmt.Sprintf("%s %s lanes=[%s]", m.Name(), version, strings.Join(lanes, ",")))
			}
			slices.Sort(lines)
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	return cmd
}

// moduleVersion returns the go module path and version providing m, or "unknown"
func moduleVersion(info *debug.BuildInfo, m config.ModuleI) string {
	v, err := retrieveModuleInfo(info, m)
	if err != nil {
		return "unknown"
	}
	return v
}

func retrieveModuleInfo(info *debug.BuildInfo, m config.ModuleI) (string, error) {
	if info == nil {
		return "", errors.New("build info is unavailable")
	}

	pkgPath := reflect.TypeOf(m).PkgPath()
	if strings.HasPrefix(pkgPath, info.Main.Path) {
		return info.Main.Path + " " + info.Main.Version, nil
	}

	i := slices.IndexFunc(info.Deps, func(dm *debug.Module) bool {
		return strings.HasPrefix(pkgPath, dm.Path)
	})
	if i == -1 {
		return "", errors.Newf("could not find module info for %s", m.Name())
	}

	return info.Deps[i].Path + " " + info.Deps[i].Version, nil
}

// lanesOfChainType returns the names of the configured lanes with a chain of the given type
func lanesOfChainType(c *config.Config, chainType string) []string {
	var names []string
	if c == nil {
		return names
	}
	for _, lane := range c.Lanes {
		if lane.Source.Type == chainType || lane.Target.Type == chainType {
			names = append(names, lane.Name)
		}
	}
	return names
}
