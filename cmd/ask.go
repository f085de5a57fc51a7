package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var showDomain bool

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Route one message and stream the answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wireApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			domain, sr, err := a.router.Stream(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			defer sr.Close()

			out := cmd.OutOrStdout()
			if showDomain {
				fmt.Fprintf(out, "[%s] ", domain)
			}
			for {
				chunk, err := sr.Recv()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				if _, err := io.WriteString(out, chunk); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&showDomain, "domain", false, "print the domain that answered")

	return cmd
}
