package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Flag lookups for flags registered in init(). A failed lookup means the
// flag name drifted from its registration, so panic loudly.

func mustGetBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("undefined bool flag --%s: %v", name, err))
	}
	return v
}

func mustGetString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("undefined string flag --%s: %v", name, err))
	}
	return v
}
