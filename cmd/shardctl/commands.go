package shardctl

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kvshard/core/metainfo"
	"github.com/kvshard/core/query"
	"github.com/kvshard/core/region"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func shardID() uint64 {
	return viper.GetUint64("shard")
}

func mutate(m query.Mutation) (query.MutationResult, error) {
	return rpcClient.Write(context.Background(), shardID(), metainfo.Map{}, metainfo.Map{}, m, 0)
}

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resp, err := rpcClient.Read(context.Background(), shardID(), metainfo.Map{}, query.NewGet([]byte(args[0])))
			if err != nil {
				return err
			}
			if !resp.Get.Found {
				fmt.Printf("key=%s not found\n", args[0])
				return nil
			}
			fmt.Printf("key=%s value=%s flags=%d cas=%d\n", args[0], resp.Get.Atom.Value, resp.Get.Atom.Flags, resp.Get.Atom.Cas)
			return nil
		},
	}

	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Unconditionally sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			_, err := mutate(query.Mutation{Kind: query.MutSet, Key: []byte(args[0]), Value: []byte(args[1])})
			if err != nil {
				return err
			}
			fmt.Println("set ok")
			return nil
		},
	}

	addCmd = &cobra.Command{
		Use:   "add [key] [value]",
		Short: "Sets the value for a key only if it does not already exist",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := mutate(query.Mutation{Kind: query.MutAdd, Key: []byte(args[0]), Value: []byte(args[1])})
			if err != nil {
				return err
			}
			fmt.Printf("add ok=%v\n", res.Ok)
			return nil
		},
	}

	replaceCmd = &cobra.Command{
		Use:   "replace [key] [value]",
		Short: "Sets the value for a key only if it already exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := mutate(query.Mutation{Kind: query.MutReplace, Key: []byte(args[0]), Value: []byte(args[1])})
			if err != nil {
				return err
			}
			fmt.Printf("replace ok=%v\n", res.Ok)
			return nil
		},
	}

	casCmd = &cobra.Command{
		Use:   "cas [key] [value] [expectedCas]",
		Short: "Sets the value for a key only if its stored cas matches expectedCas",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			cas, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("expectedCas must be a number: %w", err)
			}
			res, err := mutate(query.Mutation{Kind: query.MutCAS, Key: []byte(args[0]), Value: []byte(args[1]), ExpectedCas: cas})
			if err != nil {
				return err
			}
			fmt.Printf("cas ok=%v cas=%d\n", res.Ok, res.Cas)
			return nil
		},
	}

	appendCmd = &cobra.Command{
		Use:   "append [key] [value]",
		Short: "Appends value to the existing value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := mutate(query.Mutation{Kind: query.MutAppend, Key: []byte(args[0]), Value: []byte(args[1])})
			if err != nil {
				return err
			}
			fmt.Printf("append ok=%v value=%s\n", res.Ok, res.Value)
			return nil
		},
	}

	prependCmd = &cobra.Command{
		Use:   "prepend [key] [value]",
		Short: "Prepends value to the existing value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := mutate(query.Mutation{Kind: query.MutPrepend, Key: []byte(args[0]), Value: []byte(args[1])})
			if err != nil {
				return err
			}
			fmt.Printf("prepend ok=%v value=%s\n", res.Ok, res.Value)
			return nil
		},
	}

	incrCmd = &cobra.Command{
		Use:   "incr [key] [delta]",
		Short: "Increments the numeric value stored at key by delta",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			delta, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("delta must be a number: %w", err)
			}
			res, err := mutate(query.Mutation{Kind: query.MutIncr, Key: []byte(args[0]), Delta: delta})
			if err != nil {
				return err
			}
			fmt.Printf("incr ok=%v value=%s\n", res.Ok, res.Value)
			return nil
		},
	}

	decrCmd = &cobra.Command{
		Use:   "decr [key] [delta]",
		Short: "Decrements the numeric value stored at key by delta",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			delta, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("delta must be a number: %w", err)
			}
			res, err := mutate(query.Mutation{Kind: query.MutDecr, Key: []byte(args[0]), Delta: delta})
			if err != nil {
				return err
			}
			fmt.Printf("decr ok=%v value=%s\n", res.Ok, res.Value)
			return nil
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := mutate(query.Mutation{Kind: query.MutDelete, Key: []byte(args[0])})
			if err != nil {
				return err
			}
			fmt.Printf("delete ok=%v\n", res.Ok)
			return nil
		},
	}

	rgetCmd = &cobra.Command{
		Use:   "rget [leftKey] [rightKey]",
		Short: "Scans every key in the closed/open interval [leftKey, rightKey)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			q := query.NewRget(region.BoundClosed, []byte(args[0]), region.BoundOpen, []byte(args[1]))
			resp, err := rpcClient.Read(context.Background(), shardID(), metainfo.Map{}, q)
			if err != nil {
				return err
			}
			for {
				atom, ok, err := resp.Rget.Next()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				fmt.Printf("key=%s value=%s cas=%d\n", atom.Key, atom.Value, atom.Cas)
			}
			return nil
		},
	}

	metainfoGetCmd = &cobra.Command{
		Use:   "metainfo-get",
		Short: "Prints the shard's current region metadata map",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			m, err := rpcClient.GetMetainfo(context.Background(), shardID())
			if err != nil {
				return err
			}
			for _, e := range m.Entries() {
				fmt.Printf("%s -> %d bytes\n", e.Region, len(e.Value))
			}
			return nil
		},
	}

	metainfoSetCmd = &cobra.Command{
		Use:   "metainfo-set [leftKey] [rightKey] [blob]",
		Short: "Sets the metadata blob for the closed/open interval [leftKey, rightKey)",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			m := region.NewMap([]region.Entry[[]byte]{{
				Region: region.Region{LeftBound: region.BoundClosed, LeftKey: []byte(args[0]), RightBound: region.BoundOpen, RightKey: []byte(args[1])},
				Value:  []byte(args[2]),
			}})
			if err := rpcClient.SetMetainfo(context.Background(), shardID(), m); err != nil {
				return err
			}
			fmt.Println("metainfo-set ok")
			return nil
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset [leftKey] [rightKey]",
		Short: "Erases every key in [leftKey, rightKey); sends no new metadata, so the region's metadata is not cleared",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			sub := region.Region{LeftBound: region.BoundClosed, LeftKey: []byte(args[0]), RightBound: region.BoundOpen, RightKey: []byte(args[1])}
			if err := rpcClient.Reset(context.Background(), shardID(), sub, metainfo.Map{}); err != nil {
				return err
			}
			fmt.Println("reset ok")
			return nil
		},
	}
)
