package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/temple-recon/internal/recon"
)

var mergeNameFlag string

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage contribution groups within a reconstruction",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <reconstruction-id> <name>",
	Short: "Add an empty group",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		g, err := c.registry.AddGroup(args[0], args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("failed to add group")
		}
		c.persist()
		fmt.Println(g.GroupID)
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <reconstruction-id> <group-id>",
	Short: "Remove a group; its contributions return to ungrouped",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		if err := c.registry.RemoveGroup(args[0], args[1]); err != nil {
			log.Fatal().Err(err).Msg("failed to remove group")
		}
		c.persist()
	},
}

var groupRenameCmd = &cobra.Command{
	Use:   "rename <reconstruction-id> <group-id> <name>",
	Short: "Rename a group",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		if err := c.registry.UpdateGroupName(args[0], args[1], args[2]); err != nil {
			log.Fatal().Err(err).Msg("failed to rename group")
		}
		c.persist()
	},
}

var groupMergeCmd = &cobra.Command{
	Use:   "merge <reconstruction-id> <group-id> <group-id> [group-id...]",
	Short: "Merge two or more groups into a new one",
	Args:  cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		g, err := c.registry.MergeGroups(args[0], args[1:], mergeNameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to merge groups")
		}
		c.persist()
		fmt.Println(g.GroupID)
	},
}

var groupAssignCmd = &cobra.Command{
	Use:   "assign <reconstruction-id> <group-id> <contribution-id...>",
	Short: "Assign pool contributions to a group (moving them out of any other group)",
	Args:  cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		ids, err := parseIDs(args[2:])
		if err != nil {
			log.Fatal().Err(err).Msg("invalid contribution ids")
		}
		batch, err := pickFromPool(c.registry, args[0], ids)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to resolve contributions")
		}
		if err := c.registry.AddContributionsToGroup(args[0], args[1], batch); err != nil {
			log.Fatal().Err(err).Msg("failed to assign contributions")
		}
		c.persist()
	},
}

var groupUnassignCmd = &cobra.Command{
	Use:   "unassign <reconstruction-id> <group-id> <contribution-id...>",
	Short: "Remove contributions from a group",
	Args:  cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		ids, err := parseIDs(args[2:])
		if err != nil {
			log.Fatal().Err(err).Msg("invalid contribution ids")
		}
		batch := make([]recon.Contribution, 0, len(ids))
		for _, id := range ids {
			batch = append(batch, recon.Contribution{ContributionID: id})
		}
		if err := c.registry.RemoveContributionsFromGroup(args[0], args[1], batch); err != nil {
			log.Fatal().Err(err).Msg("failed to unassign contributions")
		}
		c.persist()
	},
}

var groupMoveCmd = &cobra.Command{
	Use:   "move <reconstruction-id> <source-group> <target-group> <contribution-id...>",
	Short: "Move contributions between two groups",
	Args:  cobra.MinimumNArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		ids, err := parseIDs(args[3:])
		if err != nil {
			log.Fatal().Err(err).Msg("invalid contribution ids")
		}
		if err := c.registry.MoveContributionsBetweenGroups(args[0], args[1], args[2], ids); err != nil {
			log.Fatal().Err(err).Msg("failed to move contributions")
		}
		c.persist()
	},
}

var groupPerContributionCmd = &cobra.Command{
	Use:   "per-contribution <reconstruction-id>",
	Short: "Replace all groups with one group per pool contribution",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		if err := c.registry.InitGroupPerContribution(args[0]); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize groups")
		}
		c.persist()
	},
}

var groupPerCategoryCmd = &cobra.Command{
	Use:   "per-category <reconstruction-id>",
	Short: "Replace all groups with one group per category",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		if err := c.registry.InitGroupPerCategory(args[0]); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize groups")
		}
		c.persist()
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list <reconstruction-id>",
	Short: "List a reconstruction's groups",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		r, err := c.registry.Get(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("reconstruction not found")
		}
		for _, g := range r.Groups {
			model := "-"
			if g.Model != nil {
				if g.Model.Opaque() {
					model = g.Model.ID
				} else {
					model = "(structured)"
				}
			}
			fmt.Printf("%s  %-24s  %-10s  contributions=%d  model=%s\n",
				g.GroupID, g.Name, g.Status, len(g.Contributions), model)
		}
	},
}

func init() {
	groupMergeCmd.Flags().StringVar(&mergeNameFlag, "name", "merged", "Name of the merged group")
	groupCmd.AddCommand(groupAddCmd, groupRemoveCmd, groupRenameCmd, groupMergeCmd,
		groupAssignCmd, groupUnassignCmd, groupMoveCmd,
		groupPerContributionCmd, groupPerCategoryCmd, groupListCmd)
}

// pickFromPool resolves contribution ids against the reconstruction's pool.
func pickFromPool(registry *recon.Registry, reconID string, ids []int) ([]recon.Contribution, error) {
	r, err := registry.Get(reconID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]recon.Contribution, len(r.Contributions))
	for _, c := range r.Contributions {
		byID[c.ContributionID] = c
	}
	out := make([]recon.Contribution, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("contribution %d is not in the reconstruction's pool", id)
		}
		out = append(out, c)
	}
	return out, nil
}
