package blockchain

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/crypto/keys"
	"github.com/mosaicnetworks/warden/src/store"
	"github.com/mosaicnetworks/warden/src/validator"
	"github.com/mosaicnetworks/warden/src/wm"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, conf Config) (*BlockService, *ecdsa.PrivateKey) {
	t.Helper()

	logger := common.NewTestEntry(t, logrus.WarnLevel)

	db, err := store.Open(t.TempDir(), logger)
	require.NoError(t, err)

	vm, err := wm.NewNativeMachine(ServiceAccountID, 4, logger)
	require.NoError(t, err)
	vm.Register(wm.ServiceContractName, wm.ServiceContract{})

	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)

	svc, err := NewBlockService(key, conf, db, vm, NewSeedSource(conf.Network, []byte("nonce")), logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		svc.Close()
		db.Close()
	})

	return svc, key
}

func initTx(t *testing.T, key *ecdsa.PrivateKey, network string, validators []string) Transaction {
	t.Helper()

	name := "skynet"
	settings := Settings{
		BlockThreshold: 5,
		BlockTimeout:   4,
		NetworkName:    &name,
		MinNodeVersion: "0.1.0",
	}
	rawSettings, err := settings.Marshal()
	require.NoError(t, err)

	args, err := common.Marshal(wm.ServiceInitArgs{Settings: rawSettings, Validators: validators})
	require.NoError(t, err)

	tx := NewTransaction(TransactionData{
		Account:   ServiceAccountID,
		FuelLimit: wm.MaxFuel,
		Nonce:     []byte{1},
		Network:   network,
		Contract:  crypto.HashBytes(wm.NativeCode(wm.ServiceContractName)),
		Method:    "init",
		Args:      args,
	})
	require.NoError(t, tx.Sign(key))

	return *tx
}

func recvBlock(t *testing.T, recv *Receiver) GetBlockResponse {
	t.Helper()

	res := make(chan Message, 1)
	go func() {
		msg, _ := recv.RecvSync()
		res <- msg
	}()

	select {
	case msg := <-res:
		block, ok := msg.(GetBlockResponse)
		require.True(t, ok, "unexpected message %#v", msg)
		return block
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for block")
	}
	return GetBlockResponse{}
}

func TestSettersRequireStoppedService(t *testing.T) {
	svc, _ := newTestService(t, Config{Network: "bootstrap", Threshold: 1, Timeout: 1})

	svc.Start()
	assert.True(t, svc.IsRunning())

	assert.Equal(t, ErrServiceRunning, svc.SetBlockConfig("other", 2, 2))
	assert.Equal(t, ErrServiceRunning, svc.SetValidator(validator.Stub{}))
	assert.Equal(t, ErrServiceRunning, svc.SetBurnFuelMethod("burn_fuel"))
	assert.Equal(t, ErrServiceRunning, svc.PutTxs(nil))

	svc.Stop()
	assert.False(t, svc.IsRunning())

	require.NoError(t, svc.SetBlockConfig("other", 2, 2))
	assert.Equal(t, Config{Network: "other", Threshold: 2, Timeout: 2}, svc.Config())
}

func TestGenesisTransactionsProduceBlock(t *testing.T) {
	svc, key := newTestService(t, Config{Network: "bootstrap", Threshold: 1, Timeout: 2})

	require.NoError(t, svc.StoreServiceAccount(wm.NativeCode(wm.ServiceContractName)))
	require.NoError(t, svc.PutTxs([]Transaction{initTx(t, key, "bootstrap", nil)}))

	svc.Start()

	sender := svc.RequestChannel()

	recv, err := sender.SendSync(SubscribeRequest{ID: "test", Events: EventBlock})
	require.NoError(t, err)

	// the block may be committed before the subscription, ask for stats first
	stats, err := sender.Request(context.Background(), GetCoreStatsRequest{})
	require.NoError(t, err)
	if stats.(GetCoreStatsResponse).LastBlock == nil {
		recvBlock(t, recv)
	}

	msg, err := sender.Request(context.Background(), GetAccountRequest{ID: ServiceAccountID, Data: []string{SettingsKey, "missing"}})
	require.NoError(t, err)

	resp, ok := msg.(GetAccountResponse)
	require.True(t, ok, "unexpected message %#v", msg)
	require.Len(t, resp.Data, 2)
	assert.Nil(t, resp.Data[1])

	var settings Settings
	require.NoError(t, settings.Unmarshal(resp.Data[0]))
	assert.Equal(t, "skynet", settings.Name())
	assert.Equal(t, 5, settings.BlockThreshold)
}

func TestPutTransactionChecks(t *testing.T) {
	svc, key := newTestService(t, Config{Network: "bootstrap", Threshold: 10, Timeout: 60})
	svc.Start()

	sender := svc.RequestChannel()

	// wrong network
	msg, err := sender.Request(context.Background(), PutTransactionRequest{Tx: initTx(t, key, "elsewhere", nil)})
	require.NoError(t, err)
	exc, ok := msg.(Exception)
	require.True(t, ok)
	assert.Equal(t, common.MalformedData, exc.Err.Kind)

	// tampered signature
	tx := initTx(t, key, "bootstrap", nil)
	tx.Data.FuelLimit++
	msg, err = sender.Request(context.Background(), PutTransactionRequest{Tx: tx})
	require.NoError(t, err)
	exc, ok = msg.(Exception)
	require.True(t, ok)
	assert.Equal(t, common.InvalidSignature, exc.Err.Kind)

	// accepted once
	tx = initTx(t, key, "bootstrap", nil)
	msg, err = sender.Request(context.Background(), PutTransactionRequest{Tx: tx})
	require.NoError(t, err)
	put, ok := msg.(PutTransactionResponse)
	require.True(t, ok)
	assert.True(t, tx.Hash().Equal(put.Hash))

	msg, err = sender.Request(context.Background(), PutTransactionRequest{Tx: tx})
	require.NoError(t, err)
	_, ok = msg.(Exception)
	assert.True(t, ok)

	msg, err = sender.Request(context.Background(), GetCoreStatsRequest{})
	require.NoError(t, err)
	stats := msg.(GetCoreStatsResponse)
	assert.Equal(t, 1, stats.PoolSize)
	assert.NotNil(t, stats.PoolHash)
	assert.Nil(t, stats.LastBlock)
}

func TestNoBlockWhenNotValidator(t *testing.T) {
	svc, key := newTestService(t, Config{Network: "bootstrap", Threshold: 1, Timeout: 1})

	require.NoError(t, svc.StoreServiceAccount(wm.NativeCode(wm.ServiceContractName)))
	require.NoError(t, svc.SetValidator(validator.Stub{Value: false}))
	require.NoError(t, svc.PutTxs([]Transaction{initTx(t, key, "bootstrap", nil)}))

	svc.Start()
	time.Sleep(300 * time.Millisecond)

	msg, err := svc.RequestChannel().Request(context.Background(), GetCoreStatsRequest{})
	require.NoError(t, err)
	stats := msg.(GetCoreStatsResponse)
	assert.Nil(t, stats.LastBlock)
	assert.Equal(t, 1, stats.PoolSize)
}

func TestLiveValidatorAfterInit(t *testing.T) {
	svc, key := newTestService(t, Config{Network: "bootstrap", Threshold: 1, Timeout: 1})

	other, _ := keys.GenerateECDSAKey()

	require.NoError(t, svc.StoreServiceAccount(wm.NativeCode(wm.ServiceContractName)))
	require.NoError(t, svc.PutTxs([]Transaction{initTx(t, key, "bootstrap", []string{svc.AccountID()})}))
	svc.Start()

	require.Eventually(t, func() bool {
		_, err := svc.DB().LoadAccountData(ServiceAccountID, SettingsKey)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	live := svc.LiveValidator("skynet")

	ok, err := live.IsValidator(svc.AccountID())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = live.IsValidator(keys.AccountID(&other.PublicKey))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChannelClosed(t *testing.T) {
	svc, _ := newTestService(t, Config{Network: "bootstrap", Threshold: 1, Timeout: 1})
	svc.Start()

	sender := svc.RequestChannel()

	recv, err := sender.SendSync(SubscribeRequest{ID: "test", Events: EventBlock})
	require.NoError(t, err)

	svc.Close()
	assert.False(t, svc.IsRunning())

	_, err = recv.RecvSync()
	assert.Equal(t, ErrChannelClosed, err)

	_, err = sender.SendSync(GetSeedRequest{})
	assert.Equal(t, ErrChannelClosed, err)

	// closed for good
	svc.Start()
	assert.False(t, svc.IsRunning())
}

func TestConfigRoundTripThroughDB(t *testing.T) {
	svc, _ := newTestService(t, Config{Network: "bootstrap", Threshold: 1, Timeout: 1})

	_, err := svc.LoadConfigFromDB()
	assert.True(t, common.IsChainErr(err, common.ResourceNotFound))

	name := "skynet"
	settings := Settings{BlockThreshold: 7, BlockTimeout: 3, NetworkName: &name, MinNodeVersion: "0.2.6"}
	require.NoError(t, svc.StoreConfigIntoDB(settings))

	loaded, err := svc.LoadConfigFromDB()
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

func TestSeedAdvancesWithBlocks(t *testing.T) {
	seed := NewSeedSource("skynet", []byte("nonce"))
	first := seed.Value()

	seed.Advance(crypto.HashBytes([]byte("a")), nil, nil)
	second := seed.Value()
	assert.NotEqual(t, first, second)

	again := NewSeedSource("skynet", []byte("nonce"))
	again.Advance(crypto.HashBytes([]byte("a")), nil, nil)
	assert.Equal(t, second, again.Value())
}
