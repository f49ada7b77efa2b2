package main

import (
	"fmt"
	"io"
	"math/rand"
	"text/tabwriter"

	"github.com/devrev/chashring/internal/config"
	"github.com/devrev/chashring/internal/model"
)

const descAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomIPv4 returns a dotted-quad address drawn from r
func randomIPv4(r *rand.Rand) string {
	return fmt.Sprintf("%d.%d.%d.%d", r.Intn(256), r.Intn(256), r.Intn(256), r.Intn(256))
}

// randomDesc returns an n-character lowercase alphanumeric name
func randomDesc(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = descAlphabet[r.Intn(len(descAlphabet))]
	}
	return string(b)
}

// randomNode builds a node with a fresh address not present in taken
func randomNode(r *rand.Rand, replicas int, taken map[string]bool) *model.PhysicalNode {
	addr := randomIPv4(r)
	for taken[addr] {
		addr = randomIPv4(r)
	}
	taken[addr] = true
	return model.NewPhysicalNode(randomDesc(r, 31), addr, replicas)
}

// generateNodes builds count machines named Machine_<i> with random addresses
func generateNodes(r *rand.Rand, count, replicas int, taken map[string]bool) []*model.PhysicalNode {
	nodes := make([]*model.PhysicalNode, 0, count)
	for i := 0; i < count; i++ {
		addr := randomIPv4(r)
		for taken[addr] {
			addr = randomIPv4(r)
		}
		taken[addr] = true
		nodes = append(nodes, model.NewPhysicalNode(fmt.Sprintf("Machine_%d", i), addr, replicas))
	}
	return nodes
}

// topologyNodes converts a topology file into physical nodes
func topologyNodes(topo *config.Topology, taken map[string]bool) []*model.PhysicalNode {
	nodes := make([]*model.PhysicalNode, 0, len(topo.Nodes))
	for _, ns := range topo.Nodes {
		taken[ns.Address] = true
		nodes = append(nodes, model.NewPhysicalNode(ns.Desc, ns.Address, ns.Replicas))
	}
	return nodes
}

// writeSummary renders a ring summary as a plain table
func writeSummary(w io.Writer, s model.RingSummary) error {
	fmt.Fprintf(w, "Total %d machines (%d vnodes), %d lookups\n", s.TotalNodes, s.TotalVirtualNodes, s.TotalLookups)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MACHINE\tIPADDR\tVNS\tHIT\tRATIO\t")
	for _, n := range s.Nodes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f%%\t\n", n.Desc, n.Address, n.VirtualNodes, n.Hits, n.HitRatio*100)
	}
	return tw.Flush()
}

// writeReport renders a disruption report
func writeReport(w io.Writer, r *model.DisruptionReport) {
	fmt.Fprintf(w, "%s %s: %d of %d keys changed owner (%.2f%%, %s) in %s\n",
		r.Mutation, r.Target, r.Changes, r.KeyCount, r.Ratio*100, r.Classification, r.Duration)
}
