package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	api "flintkv/pkg/api"
)

const flashbackFlagBit = uint32(1 << 1)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "kv":
		kvCmd(os.Args[2:])
	case "admin":
		adminCmd(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`usage:
  flintkv-cli kv put|get|del [-addr host:port] [-flashback] <key> [value]
  flintkv-cli admin prepare-flashback|finish-flashback [-addr host:port] <region-id>
  flintkv-cli admin split [-addr host:port] <region-id> <split-key> <new-region-id>
  flintkv-cli admin transfer-leader [-addr host:port] <region-id> <peer-id>
  flintkv-cli admin region [-addr host:port] <region-id>`)
}

func dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		api.WithJSONCodec())
}

func kvCmd(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	verb := args[0]
	fs := flag.NewFlagSet("kv "+verb, flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:19090", "store gRPC address")
	flashback := fs.Bool("flashback", false, "mark the request as flashback traffic")
	_ = fs.Parse(args[1:])
	rest := fs.Args()

	conn, err := dial(*addr)
	if err != nil {
		fatal(err)
	}
	defer conn.Close()
	client := api.NewKVClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reqCtx := &api.RequestContext{}
	if *flashback {
		reqCtx.Flags = flashbackFlagBit
	}

	switch verb {
	case "put":
		if len(rest) != 2 {
			usage()
			os.Exit(1)
		}
		_, err = client.Put(ctx, &api.PutRequest{Context: reqCtx, Key: []byte(rest[0]), Value: []byte(rest[1])})
		if err == nil {
			fmt.Println("OK")
		}
	case "get":
		if len(rest) != 1 {
			usage()
			os.Exit(1)
		}
		var resp *api.GetResponse
		resp, err = client.Get(ctx, &api.GetRequest{Context: reqCtx, Key: []byte(rest[0])})
		if err == nil {
			if resp.Found {
				fmt.Println(string(resp.Value))
			} else {
				fmt.Println("(not found)")
			}
		}
	case "del":
		if len(rest) != 1 {
			usage()
			os.Exit(1)
		}
		_, err = client.Delete(ctx, &api.DeleteRequest{Context: reqCtx, Key: []byte(rest[0])})
		if err == nil {
			fmt.Println("OK")
		}
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
}

func adminCmd(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	verb := args[0]
	fs := flag.NewFlagSet("admin "+verb, flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:19090", "store gRPC address")
	_ = fs.Parse(args[1:])
	rest := fs.Args()
	if len(rest) < 1 {
		usage()
		os.Exit(1)
	}

	conn, err := dial(*addr)
	if err != nil {
		fatal(err)
	}
	defer conn.Close()
	client := api.NewAdminClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var regionID uint64
	if _, err := fmt.Sscanf(rest[0], "%d", &regionID); err != nil {
		fatal(fmt.Errorf("bad region id %q", rest[0]))
	}

	// Admin commands are fenced by epoch; fetch the current one first.
	detail, err := client.RegionDetail(ctx, &api.RegionDetailRequest{RegionId: regionID})
	if err != nil {
		fatal(err)
	}
	reqCtx := &api.RequestContext{RegionId: regionID, Epoch: detail.Region.Epoch}

	switch verb {
	case "prepare-flashback":
		var resp *api.PrepareFlashbackResponse
		resp, err = client.PrepareFlashback(ctx, &api.PrepareFlashbackRequest{Context: reqCtx})
		if err == nil {
			printRegion(resp.Region)
		}
	case "finish-flashback":
		var resp *api.FinishFlashbackResponse
		resp, err = client.FinishFlashback(ctx, &api.FinishFlashbackRequest{Context: reqCtx})
		if err == nil {
			printRegion(resp.Region)
		}
	case "split":
		if len(rest) != 3 {
			usage()
			os.Exit(1)
		}
		var newID uint64
		if _, err := fmt.Sscanf(rest[2], "%d", &newID); err != nil {
			fatal(fmt.Errorf("bad new region id %q", rest[2]))
		}
		var resp *api.SplitResponse
		resp, err = client.Split(ctx, &api.SplitRequest{
			Context:     reqCtx,
			SplitKey:    []byte(rest[1]),
			NewRegionId: newID,
		})
		if err == nil {
			for _, region := range resp.Regions {
				printRegion(region)
			}
		}
	case "transfer-leader":
		if len(rest) != 2 {
			usage()
			os.Exit(1)
		}
		var peerID uint64
		if _, err := fmt.Sscanf(rest[1], "%d", &peerID); err != nil {
			fatal(fmt.Errorf("bad peer id %q", rest[1]))
		}
		_, err = client.TransferLeader(ctx, &api.TransferLeaderRequest{
			Context:          reqCtx,
			TransfereePeerId: peerID,
		})
		if err == nil {
			fmt.Println("OK")
		}
	case "region":
		printRegion(detail.Region)
		fmt.Printf("applied_index=%d applied_term=%d\n", detail.AppliedIndex, detail.AppliedTerm)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
}

func printRegion(region *api.Region) {
	if region == nil {
		return
	}
	fmt.Printf("region %d [%q, %q) version=%d conf_version=%d flashback=%v\n",
		region.Id, region.StartKey, region.EndKey,
		region.Epoch.Version, region.Epoch.ConfVersion, region.IsInFlashback)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
