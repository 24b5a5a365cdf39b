package main

import (
	"fmt"

	"github.com/google/gopacket/pcap"
	"github.com/spf13/cobra"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List local network interfaces usable with 'run -i'",
	RunE:  runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return withExitCode(exitOSError, fmt.Errorf("listing interfaces: %w", err))
	}
	if len(devices) == 0 {
		fmt.Println("no interfaces found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%s", d.Name)
		if d.Description != "" {
			fmt.Printf("  (%s)", d.Description)
		}
		fmt.Println()
		for _, addr := range d.Addresses {
			fmt.Printf("    %s\n", addr.IP)
		}
	}
	return nil
}
