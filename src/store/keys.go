package store

import "fmt"

const (
	accountPrefix = "accounts"
	configPrefix  = "config"
	blockPrefix   = "blocks"
	txPrefix      = "txs"
	receiptPrefix = "rxs"
)

var lastBlockKey = []byte(fmt.Sprintf("%s:last", blockPrefix))

func accountKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", accountPrefix, id))
}

func accountDataKey(id string, key string) []byte {
	return []byte(fmt.Sprintf("%s:%s:data:%s", accountPrefix, id, key))
}

func configKey(key string) []byte {
	return []byte(fmt.Sprintf("%s:%s", configPrefix, key))
}

func blockKey(height uint64) []byte {
	return []byte(fmt.Sprintf("%s:%020d", blockPrefix, height))
}

func txKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s:%s", txPrefix, hash))
}

func receiptKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s:%s", receiptPrefix, hash))
}
