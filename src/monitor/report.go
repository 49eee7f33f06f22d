package monitor

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// WriteReport renders the status as a sequence of titled tables.
func (s *Status) WriteReport(w io.Writer, nodeID string) error {
	sections := []struct {
		title string
		rows  [][]string
	}{
		{"node id", [][]string{{"node id", nodeID}}},
		{"node info", [][]string{
			{"public key", s.PublicKey},
			{"network public key", s.NwPublicKey},
			{"public IP", s.PubIP},
			{"IP end point", s.IPEndpoint},
			{"role", string(s.Role)},
			{"core version", s.CoreVersion},
		}},
		{"network info", [][]string{
			{"name", s.NwConfig.Name},
			{"block threshold", strconv.Itoa(s.NwConfig.BlockThreshold)},
			{"block timeout", strconv.Itoa(int(s.NwConfig.BlockTimeout))},
		}},
		{"p2p info", [][]string{
			{"address", s.P2PInfo.Addr},
			{"port", strconv.Itoa(s.P2PInfo.Port)},
			{"bootstrap address", s.P2PInfo.BootstrapAddr},
		}},
		{"last block", s.lastBlockRows()},
		{"unconfirmed pool", s.poolRows()},
		{"seed", [][]string{{"seed", strconv.FormatUint(s.Seed, 10)}}},
	}

	for _, section := range sections {
		if _, err := fmt.Fprintf(w, "%s\n", section.title); err != nil {
			return err
		}

		table := tablewriter.NewWriter(w)
		table.SetAutoWrapText(false)
		table.AppendBulk(section.rows)
		table.Render()

		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	return nil
}

func (s *Status) lastBlockRows() [][]string {
	if s.LastBlock == nil {
		return [][]string{{"None"}}
	}

	data := s.LastBlock.Block.Data

	return [][]string{
		{"hash", s.LastBlock.Hash},
		{"height", strconv.FormatUint(data.Height, 10)},
		{"size", strconv.FormatUint(uint64(data.Size), 10)},
		{"previous hash", data.PrevHash.String()},
		{"txs hash", data.TxsHash.String()},
		{"rxs hash", data.RxsHash.String()},
		{"state hash", data.StateHash.String()},
	}
}

func (s *Status) poolRows() [][]string {
	if s.UnconfirmedPool == nil {
		return [][]string{{"None"}}
	}

	return [][]string{
		{"hash", s.UnconfirmedPool.Hash},
		{"length", strconv.Itoa(s.UnconfirmedPool.Size)},
	}
}

// saveReport rewrites the report file. The new content replaces the old one
// atomically.
func saveReport(path string, s *Status, nodeID string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := ioutil.TempFile(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := s.WriteReport(tmp, nodeID); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
