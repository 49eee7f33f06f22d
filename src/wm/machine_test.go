package wm

import (
	"testing"

	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testService = "TRINCI"

func initTestMachine(t *testing.T) (*store.DB, *NativeMachine, crypto.Hash) {
	t.Helper()

	logger := common.NewTestEntry(t, logrus.WarnLevel)

	db, err := store.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	vm, err := NewNativeMachine(testService, 4, logger)
	require.NoError(t, err)
	vm.Register(ServiceContractName, ServiceContract{})

	code := NativeCode(ServiceContractName)
	hash := crypto.HashBytes(code)

	require.NoError(t, db.Update(func(f *store.Fork) error {
		if err := f.StoreAccount(store.NewAccount(testService, hash)); err != nil {
			return err
		}
		return f.StoreAccountData(testService, CodeKey(hash), code)
	}))

	return db, vm, hash
}

func call(t *testing.T, db *store.DB, vm Machine, hash crypto.Hash, caller, method string, args interface{}) ([]byte, error) {
	t.Helper()

	raw, err := common.Marshal(args)
	require.NoError(t, err)

	var res []byte
	err = db.Update(func(f *store.Fork) error {
		ctx := CallContext{Network: "test", Owner: testService, Caller: caller, Origin: caller}
		_, r, err := vm.Call(f, ctx, hash, method, raw, 0, MaxFuel)
		res = r
		return err
	})
	return res, err
}

func decodeBool(t *testing.T, raw []byte) bool {
	t.Helper()
	var b bool
	require.NoError(t, common.Unmarshal(raw, &b))
	return b
}

func TestServiceContractInitOnce(t *testing.T) {
	db, vm, hash := initTestMachine(t)

	args := ServiceInitArgs{Settings: []byte{1, 2, 3}, Validators: []string{"alice"}}

	_, err := call(t, db, vm, hash, "alice", "init", args)
	require.NoError(t, err)

	settings, err := db.LoadAccountData(testService, SettingsKey)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, settings)

	_, err = call(t, db, vm, hash, "alice", "init", args)
	assert.True(t, common.IsChainErr(err, common.Unauthorized))
}

func TestServiceContractValidators(t *testing.T) {
	db, vm, hash := initTestMachine(t)

	// before init, every node validates
	res, err := call(t, db, vm, hash, "bob", "is_validator", "bob")
	require.NoError(t, err)
	assert.True(t, decodeBool(t, res))

	_, err = call(t, db, vm, hash, "alice", "init",
		ServiceInitArgs{Settings: []byte{1}, Validators: []string{"alice"}})
	require.NoError(t, err)

	res, err = call(t, db, vm, hash, "bob", "is_validator", "bob")
	require.NoError(t, err)
	assert.False(t, decodeBool(t, res))

	_, err = call(t, db, vm, hash, "bob", "add_validator", "bob")
	assert.True(t, common.IsChainErr(err, common.Unauthorized))

	_, err = call(t, db, vm, hash, "alice", "add_validator", "bob")
	require.NoError(t, err)

	res, err = call(t, db, vm, hash, "alice", "is_validator", "bob")
	require.NoError(t, err)
	assert.True(t, decodeBool(t, res))
}

func TestFailedCallLeavesNoWrites(t *testing.T) {
	db, vm, _ := initTestMachine(t)

	failing := ContractFunc(func(env *Env, method string, args []byte) ([]byte, error) {
		if err := env.Store("partial", []byte("x")); err != nil {
			return nil, err
		}
		return nil, common.NewChainErr(common.Other, "fail")
	})
	vm.Register("failing", failing)

	code := NativeCode("failing")
	hash := crypto.HashBytes(code)
	require.NoError(t, db.Update(func(f *store.Fork) error {
		return f.StoreAccountData(testService, CodeKey(hash), code)
	}))

	err := db.Update(func(f *store.Fork) error {
		_, _, err := vm.Call(f, CallContext{Owner: testService}, hash, "any", nil, 0, MaxFuel)
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)

	_, err = db.LoadAccountData(testService, "partial")
	assert.True(t, common.IsChainErr(err, common.ResourceNotFound))
}

func TestOutOfFuel(t *testing.T) {
	db, vm, hash := initTestMachine(t)

	err := db.Update(func(f *store.Fork) error {
		burned, _, err := vm.Call(f, CallContext{Owner: testService}, hash, "get_settings", nil, 0, 10)
		assert.Equal(t, uint64(10), burned)
		return err
	})
	assert.True(t, common.IsChainErr(err, common.MachineFault))
}

func TestUnknownContract(t *testing.T) {
	db, vm, _ := initTestMachine(t)

	err := db.Update(func(f *store.Fork) error {
		_, _, err := vm.Call(f, CallContext{Owner: testService}, crypto.HashBytes([]byte("nope")), "init", nil, 0, MaxFuel)
		return err
	})
	assert.True(t, common.IsChainErr(err, common.MachineFault))

	code := NativeCode("unregistered")
	hash := crypto.HashBytes(code)
	require.NoError(t, db.Update(func(f *store.Fork) error {
		return f.StoreAccountData(testService, CodeKey(hash), code)
	}))

	err = db.Update(func(f *store.Fork) error {
		_, _, err := vm.Call(f, CallContext{Owner: testService}, hash, "init", nil, 0, MaxFuel)
		return err
	})
	assert.True(t, common.IsChainErr(err, common.MachineFault))
}
