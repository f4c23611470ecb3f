package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-vhdx/internal/services"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <image>",
	Short: "Decode the full image and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vhdx, err := services.OpenFile(args[0])
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(vhdx)
		}
		printHeaderSection(&vhdx.Header)
		printLog(&vhdx.Log)
		printMetadata(&vhdx.Metadata)
		printBat(vhdx.Bat)
		return nil
	},
}

var headerCmd = &cobra.Command{
	Use:   "header <image>",
	Short: "Show the resolved header section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vhdx, err := services.OpenFile(args[0])
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(vhdx.Header)
		}
		printHeaderSection(&vhdx.Header)
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log <image>",
	Short: "Show the replayed log entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vhdx, err := services.OpenFile(args[0])
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(vhdx.Log)
		}
		printLog(&vhdx.Log)
		return nil
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata <image>",
	Short: "Show the metadata table and derived geometry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vhdx, err := services.OpenFile(args[0])
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(vhdx.Metadata)
		}
		printMetadata(&vhdx.Metadata)
		return nil
	},
}

var batCmd = &cobra.Command{
	Use:   "bat <image>",
	Short: "Show the block allocation table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vhdx, err := services.OpenFile(args[0])
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(vhdx.Bat)
		}
		printBat(vhdx.Bat)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd, headerCmd, logCmd, metadataCmd, batCmd)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printHeaderSection(h *types.HeaderSection) {
	fmt.Printf("File Type Identifier\n")
	fmt.Printf("  Creator:          %s\n", h.FileIdentifier.Creator)
	for i, c := range h.Headers {
		marker := " "
		if i == h.CurrentIndex {
			marker = "*"
		}
		fmt.Printf("Header %d %s\n", i+1, marker)
		if c.Valid || c.Header.Signature == types.SignatureHeader {
			fmt.Printf("  SequenceNumber:   %d\n", c.Header.SequenceNumber)
			fmt.Printf("  FileWriteGuid:    %s\n", c.Header.FileWriteGUID)
			fmt.Printf("  DataWriteGuid:    %s\n", c.Header.DataWriteGUID)
			fmt.Printf("  LogGuid:          %s\n", c.Header.LogGUID)
			fmt.Printf("  LogOffset/Length: %d / %d\n", c.Header.LogOffset, c.Header.LogLength)
		}
		if c.Reason != "" {
			fmt.Printf("  Rejected:         %s\n", c.Reason)
		}
	}
	for i, c := range h.RegionTables {
		marker := " "
		if i == h.ActiveIndex {
			marker = "*"
		}
		fmt.Printf("Region Table %d %s\n", i+1, marker)
		for _, e := range c.Table.Entries {
			fmt.Printf("  %s  offset=%-12d length=%-10d required=%t\n",
				e.GUID, e.FileOffset, e.Length, e.Required)
		}
		if c.Reason != "" {
			fmt.Printf("  Rejected:         %s\n", c.Reason)
		}
	}
}

func printLog(l *types.Log) {
	if len(l.Replayed) == 0 {
		fmt.Printf("Log: clean, nothing replayed\n")
		return
	}
	fmt.Printf("Log: replayed %d entries\n", len(l.Replayed))
	for _, e := range l.Replayed {
		fmt.Printf("  seq=%-8d offset=%-10d length=%-8d descriptors=%d\n",
			e.Header.SequenceNumber, e.Offset, e.Header.EntryLength, len(e.Descriptors))
	}
}

func printMetadata(m *types.Metadata) {
	fmt.Printf("Metadata (%d entries)\n", m.Header.EntryCount)
	fmt.Printf("  BlockSize:           %d\n", m.FileParameters.BlockSize)
	fmt.Printf("  LeaveBlockAllocated: %t\n", m.FileParameters.LeaveBlockAllocated)
	fmt.Printf("  HasParent:           %t\n", m.FileParameters.HasParent)
	fmt.Printf("  VirtualDiskSize:     %d\n", m.VirtualDiskSize)
	fmt.Printf("  VirtualDiskId:       %s\n", m.VirtualDiskID)
	fmt.Printf("  LogicalSectorSize:   %d\n", m.LogicalSectorSize)
	fmt.Printf("  PhysicalSectorSize:  %d\n", m.PhysicalSectorSize)
	fmt.Printf("  ChunkRatio:          %d\n", m.Geometry.ChunkRatio)
	fmt.Printf("  PayloadBlocksCount:  %d\n", m.Geometry.PayloadBlocksCount)
	fmt.Printf("  BatEntryCount:       %d\n", m.BatEntryCount())
	if m.ParentLocator != nil {
		fmt.Printf("  ParentLocator:       %s\n", m.ParentLocator.LocatorType)
		for k, v := range m.ParentLocator.Entries {
			fmt.Printf("    %s = %s\n", k, v)
		}
	}
}

func printBat(entries []types.BatEntry) {
	limit := viper.GetInt("bat_entry_limit")
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	fmt.Printf("BAT (%d entries)\n", len(entries))
	for i, e := range entries[:limit] {
		kind := "payload"
		if e.IsSectorBitmap {
			kind = "bitmap"
		}
		fmt.Printf("  %-6d %-8s %-18s offsetMB=%d\n", i, kind, e.State, e.FileOffsetMB)
	}
	if limit < len(entries) {
		fmt.Printf("  ... %d more entries (bat_entry_limit=%d)\n", len(entries)-limit, limit)
	}
}
