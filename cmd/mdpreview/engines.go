package main

import (
	"fmt"

	"github.com/xlab/treeprint"

	mdpreview "github.com/alnah/go-mdpreview"
)

// runEngines prints the engine readiness table as a tree grouped by
// category.
func runEngines(args []string, env *Environment) error {
	f, positional, err := parseEnginesFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	if len(positional) > 0 {
		return fmt.Errorf("%w: engines takes no arguments", ErrUsage)
	}

	cfg, err := loadConfig(f.common.config, env)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sess, err := mdpreview.NewSession(sessionOptions(cfg)...)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Fprint(env.Stdout, engineTree(sess.Engines(), sess.Config()))
	return nil
}

// engineTree renders statuses as a tree, marking the selected engines.
func engineTree(statuses []mdpreview.EngineStatus, selected mdpreview.RenderConfig) string {
	tree := treeprint.NewWithRoot("engines")
	branches := make(map[string]treeprint.Tree)
	for _, st := range statuses {
		b, ok := branches[st.Category]
		if !ok {
			b = tree.AddBranch(st.Category)
			branches[st.Category] = b
		}
		label := string(st.ID)
		if st.ID == selected.Markup || st.ID == selected.Math {
			label += " (selected)"
		}
		b.AddMetaNode(readiness(st.Ready), label)
	}
	return tree.String()
}

func readiness(ready bool) string {
	if ready {
		return "ready"
	}
	return "loading"
}
