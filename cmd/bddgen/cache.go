package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/v0xg/bddgen/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List cached URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := requireCache()
			if err != nil {
				return err
			}
			defer c.Close()

			infos, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			printCacheInfo(os.Stdout, infos)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [url]",
		Short: "Remove one cached URL, or every entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireCache()
			if err != nil {
				return err
			}
			defer c.Close()

			if len(args) == 1 {
				if err := c.Invalidate(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("✓ Removed %s from cache\n", args[0])
				return nil
			}
			n, err := c.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("✓ Cleared %d cached entries\n", n)
			return nil
		},
	})

	return cmd
}

func printCacheInfo(w io.Writer, infos []cache.Info) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "Cache is empty")
		return
	}
	for _, info := range infos {
		state := "expires " + info.ExpiresAt.Local().Format(time.DateTime)
		if info.Expired {
			state = "expired"
		}
		fmt.Fprintf(w, "  %s  (cached %s, %s)\n", info.URL, info.CreatedAt.Local().Format(time.DateTime), state)
	}
	fmt.Fprintf(w, "%d entries\n", len(infos))
}
