package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tensorfuzz/domaininfer/pkg/domain"
)

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <artifact>",
		Short: "Decode a domain artifact and print its ranges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := domain.LoadFile(args[0])
			if err != nil {
				return err
			}
			if set == nil {
				fmt.Println("no safe range found (null domain); samplers fall back to", domain.DefaultRange)
				return nil
			}
			for _, r := range set {
				fmt.Println(r)
			}
			return nil
		},
	}
	return cmd
}
