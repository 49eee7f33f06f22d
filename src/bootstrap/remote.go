package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreos/go-semver/semver"
	"github.com/mosaicnetworks/warden/src/genesis"
	"github.com/sirupsen/logrus"
)

// Paths of the REST endpoints used to join a network from a running node.
const (
	VisaPath      = "/api/v1/visa"
	BootstrapPath = "/api/v1/bootstrap"
)

// Visa describes a running node.
type Visa struct {
	NodeVersion  string   `json:"node_version"`
	CoreVersion  string   `json:"core_version"`
	NetworkName  string   `json:"network_name"`
	AccountID    string   `json:"account_id"`
	P2PAccountID string   `json:"p2p_account_id"`
	P2PAddrs     []string `json:"p2p_addrs"`
}

func endpoint(addr string, path string) string {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/") + path
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	return ioutil.ReadAll(resp.Body)
}

// FetchVisa asks a running node for its visa.
func FetchVisa(ctx context.Context, client *http.Client, addr string) (*Visa, error) {
	body, err := get(ctx, client, endpoint(addr, VisaPath))
	if err != nil {
		return nil, err
	}

	visa := new(Visa)
	if err := json.Unmarshal(body, visa); err != nil {
		return nil, fmt.Errorf("decoding visa: %w", err)
	}

	return visa, nil
}

// FetchBootstrap downloads the genesis bundle of a running node and saves it
// in dir as <network name>.bin. It returns the file path and the network name.
func FetchBootstrap(ctx context.Context, client *http.Client, addr string, dir string) (string, string, error) {
	data, err := get(ctx, client, endpoint(addr, BootstrapPath))
	if err != nil {
		return "", "", err
	}

	if _, err := genesis.Decode(data); err != nil {
		return "", "", err
	}

	name := genesis.NetworkName(data)
	path := filepath.Join(dir, name+".bin")

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", "", err
	}

	if err := ioutil.WriteFile(path, data, 0600); err != nil {
		return "", "", err
	}

	return path, name, nil
}

// CheckVersion compares the version of this node with the one of a remote node.
// Differences are only reported. It returns false when the versions differ or
// cannot be compared.
func CheckVersion(local string, remote string, logger *logrus.Entry) bool {
	lv, err := semver.NewVersion(local)
	if err != nil {
		logger.WithError(err).Warn("Cannot parse local version")
		return false
	}

	rv, err := semver.NewVersion(remote)
	if err != nil {
		logger.WithError(err).Warn("Cannot parse remote version")
		return false
	}

	fields := logrus.Fields{"local": lv.String(), "remote": rv.String()}

	switch {
	case lv.Major != rv.Major || lv.Minor != rv.Minor:
		logger.WithFields(fields).Warn("Node version differs from remote node")
		return false
	case lv.Patch != rv.Patch:
		logger.WithFields(fields).Info("Node patch version differs from remote node")
		return false
	}

	return true
}
