package enclave

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/secret-contract-enclave/contract"
	"github.com/ruteri/secret-contract-enclave/cryptoutils"
	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
	"github.com/ruteri/secret-contract-enclave/metrics"
)

// KeyManager is what the entry points need from the key manager.
type KeyManager interface {
	interfaces.KeyManager
	contract.CallbackKeyProvider
	SigningKey() (*ecdsa.PrivateKey, error)
}

// CodeLoader fetches contract code by hash from outside the enclave.
type CodeLoader interface {
	LoadCode(ctx context.Context, hash interfaces.ContractHash) ([]byte, error)
}

// Memory allocates output buffers owned by the host.
type Memory interface {
	NewUserSpaceBuffer(data []byte) (ffi.UserSpaceBuffer, error)
}

type Config struct {
	KeyManager KeyManager
	Executor   interfaces.Executor
	CodeLoader CodeLoader
	Memory     Memory
	Log        *slog.Logger

	// QueryGasLimit caps query gas below MaxGas. Zero means MaxGas.
	QueryGasLimit uint64
}

type Enclave struct {
	km            KeyManager
	validator     *contract.Validator
	executor      interfaces.Executor
	code          CodeLoader
	memory        Memory
	log           *slog.Logger
	queryGasLimit uint64

	nodeKeyMu sync.Mutex
	nodeKey   *ecdsa.PrivateKey
}

func New(cfg Config) (*Enclave, error) {
	if cfg.KeyManager == nil {
		return nil, errors.New("key manager is required")
	}
	if cfg.Memory == nil {
		return nil, errors.New("memory bridge is required")
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	executor := cfg.Executor
	if executor == nil {
		executor = UnimplementedExecutor{}
	}

	queryGasLimit := cfg.QueryGasLimit
	if queryGasLimit == 0 || queryGasLimit > MaxGas {
		queryGasLimit = MaxGas
	}

	return &Enclave{
		km:            cfg.KeyManager,
		validator:     contract.NewValidator(cfg.KeyManager, contract.NewCallbackSigner(cfg.KeyManager), log),
		executor:      executor,
		code:          cfg.CodeLoader,
		memory:        cfg.Memory,
		log:           log,
		queryGasLimit: queryGasLimit,
	}, nil
}

// Validator exposes the authenticator the entry points use.
func (e *Enclave) Validator() *contract.Validator {
	return e.validator
}

// Init instantiates a contract. The message must be signed by the sender (or
// come with a valid callback signature), and the generated contract key is
// returned inside the output for the host to persist.
func (e *Enclave) Init(ctx context.Context, req CallRequest) (result ffi.InitResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("init panicked", "panic", r)
			result = ffi.InitFailure(ffi.ErrPanic)
		}
		e.record(interfaces.EntrypointInit, result.Failure(), start)
	}()

	out, usedGas, err := e.init(ctx, req)
	if err != nil {
		return ffi.InitFailure(ffi.AsEnclaveError(err, ffi.KindUnknown))
	}

	buf, sig, err := e.finish(out, ffi.ExecutionDigest(out, usedGas))
	if err != nil {
		return ffi.InitFailure(ffi.AsEnclaveError(err, ffi.KindUnknown))
	}
	return ffi.InitSuccess(buf, usedGas, sig)
}

func (e *Enclave) init(ctx context.Context, req CallRequest) ([]byte, uint64, error) {
	env, err := decodeEnv(req.Env)
	if err != nil {
		return nil, 0, err
	}
	sigInfo, err := decodeSigInfo(req.SigInfo)
	if err != nil {
		return nil, 0, err
	}

	code, err := e.loadCode(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	payload, err := e.validator.ValidateMsg(req.Msg, code)
	if err != nil {
		return nil, 0, err
	}

	if err := e.validator.VerifyParams(sigInfo, env, req.Msg); err != nil {
		return nil, 0, err
	}

	key, err := e.validator.GenerateEncryptionKey(env, code, env.Contract.Address)
	if err != nil {
		return nil, 0, err
	}
	env = env.WithContractKey(key.ContractKey())

	res, err := e.execute(ctx, interfaces.ExecutionRequest{
		Entrypoint:    interfaces.EntrypointInit,
		Code:          code,
		Env:           env,
		Msg:           payload,
		EncryptionKey: key,
		GasLimit:      capGas(req.GasLimit, MaxGas),
	})
	if err != nil {
		return nil, 0, err
	}

	out, err := marshalInitOutput(key.ContractKey(), res.Output)
	if err != nil {
		return nil, 0, err
	}
	return out, res.UsedGas, nil
}

// Handle executes a call on an instantiated contract. The contract key in env
// must authenticate the contract address and code before the message is
// checked.
func (e *Enclave) Handle(ctx context.Context, req CallRequest) (result ffi.HandleResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("handle panicked", "panic", r)
			result = ffi.HandleFailure(ffi.ErrPanic)
		}
		e.record(interfaces.EntrypointHandle, result.Failure(), start)
	}()

	out, usedGas, err := e.handle(ctx, req)
	if err != nil {
		return ffi.HandleFailure(ffi.AsEnclaveError(err, ffi.KindUnknown))
	}

	buf, sig, err := e.finish(out, ffi.ExecutionDigest(out, usedGas))
	if err != nil {
		return ffi.HandleFailure(ffi.AsEnclaveError(err, ffi.KindUnknown))
	}
	return ffi.HandleSuccess(buf, usedGas, sig)
}

func (e *Enclave) handle(ctx context.Context, req CallRequest) ([]byte, uint64, error) {
	env, err := decodeEnv(req.Env)
	if err != nil {
		return nil, 0, err
	}
	sigInfo, err := decodeSigInfo(req.SigInfo)
	if err != nil {
		return nil, 0, err
	}

	code, key, err := e.authenticateContract(ctx, req, env)
	if err != nil {
		return nil, 0, err
	}

	payload, err := e.validator.ValidateMsg(req.Msg, code)
	if err != nil {
		return nil, 0, err
	}

	if err := e.validator.VerifyParams(sigInfo, env, req.Msg); err != nil {
		return nil, 0, err
	}

	res, err := e.execute(ctx, interfaces.ExecutionRequest{
		Entrypoint:    interfaces.EntrypointHandle,
		Code:          code,
		Env:           env,
		Msg:           payload,
		EncryptionKey: interfaces.EncryptionKey(key),
		GasLimit:      capGas(req.GasLimit, MaxGas),
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Output, res.UsedGas, nil
}

// Query runs a read-only call. Queries carry no signature; the contract key
// and the message prefix are still checked.
func (e *Enclave) Query(ctx context.Context, req CallRequest) (result ffi.QueryResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("query panicked", "panic", r)
			result = ffi.QueryFailure(ffi.ErrPanic)
		}
		e.record(interfaces.EntrypointQuery, result.Failure(), start)
	}()

	out, usedGas, err := e.query(ctx, req)
	if err != nil {
		return ffi.QueryFailure(ffi.AsEnclaveError(err, ffi.KindUnknown))
	}

	buf, sig, err := e.finish(out, ffi.ExecutionDigest(out, usedGas))
	if err != nil {
		return ffi.QueryFailure(ffi.AsEnclaveError(err, ffi.KindUnknown))
	}
	return ffi.QuerySuccess(buf, usedGas, sig)
}

func (e *Enclave) query(ctx context.Context, req CallRequest) ([]byte, uint64, error) {
	env, err := decodeEnv(req.Env)
	if err != nil {
		return nil, 0, err
	}

	code, key, err := e.authenticateContract(ctx, req, env)
	if err != nil {
		return nil, 0, err
	}

	payload, err := e.validator.ValidateMsg(req.Msg, code)
	if err != nil {
		return nil, 0, err
	}

	res, err := e.execute(ctx, interfaces.ExecutionRequest{
		Entrypoint:    interfaces.EntrypointQuery,
		Code:          code,
		Env:           env,
		Msg:           payload,
		EncryptionKey: interfaces.EncryptionKey(key),
		GasLimit:      capGas(req.GasLimit, e.queryGasLimit),
		ReadOnly:      true,
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Output, res.UsedGas, nil
}

func (e *Enclave) authenticateContract(ctx context.Context, req CallRequest, env interfaces.Env) ([]byte, interfaces.ContractKey, error) {
	key, err := e.validator.ExtractContractKey(env)
	if err != nil {
		return nil, interfaces.ContractKey{}, err
	}

	code, err := e.loadCode(ctx, req)
	if err != nil {
		return nil, interfaces.ContractKey{}, err
	}

	valid, err := e.validator.ValidateContractKeyErr(key, env.Contract.Address, code)
	if err != nil {
		e.log.Error("could not validate contract key", "err", err)
		return nil, interfaces.ContractKey{}, err
	}
	if !valid {
		e.log.Error("contract key does not authenticate the contract",
			slog.Int("address_length", len(env.Contract.Address)))
		return nil, interfaces.ContractKey{}, ffi.ErrFailedContractAuthentication
	}
	return code, key, nil
}

func (e *Enclave) loadCode(ctx context.Context, req CallRequest) ([]byte, error) {
	if len(req.Code) > 0 {
		return req.Code, nil
	}
	if req.CodeHash == nil || e.code == nil {
		e.log.Error("call without contract code")
		return nil, ffi.ErrInvalidWasm
	}

	code, err := e.code.LoadCode(ctx, *req.CodeHash)
	if err != nil {
		return nil, err
	}
	if contract.CalcContractHash(code) != *req.CodeHash {
		e.log.Error("code ocall returned code with a different hash", slog.String("code_hash", req.CodeHash.String()))
		return nil, ffi.NewFailedOcall(interfaces.ErrContentHashMismatch)
	}
	return code, nil
}

func (e *Enclave) execute(ctx context.Context, req interfaces.ExecutionRequest) (interfaces.ExecutionResult, error) {
	res, err := e.executor.Execute(ctx, req)
	if err != nil {
		e.log.Debug("execution failed", slog.String("entrypoint", string(req.Entrypoint)), "err", err)
		return interfaces.ExecutionResult{}, ffi.AsEnclaveError(err, ffi.KindFailedFunctionCall)
	}
	if res.UsedGas > req.GasLimit {
		return interfaces.ExecutionResult{}, ffi.ErrOutOfGas
	}
	return res, nil
}

// finish signs the output digest and moves the output into host memory.
func (e *Enclave) finish(out []byte, digest [cryptoutils.HashSize]byte) (ffi.UserSpaceBuffer, ffi.Signature, error) {
	sig, err := e.sign(digest)
	if err != nil {
		return ffi.UserSpaceBuffer{}, ffi.Signature{}, err
	}

	buf, err := e.memory.NewUserSpaceBuffer(out)
	if err != nil {
		e.log.Error("could not allocate output buffer", "err", err)
		return ffi.UserSpaceBuffer{}, ffi.Signature{}, ffi.AsEnclaveError(err, ffi.KindMemoryAllocationError)
	}
	return buf, sig, nil
}

func (e *Enclave) sign(digest [cryptoutils.HashSize]byte) (ffi.Signature, error) {
	key, err := e.km.SigningKey()
	if err != nil {
		e.log.Error("enclave signing key unavailable", "err", err)
		return ffi.Signature{}, fmt.Errorf("%w: %w", ffi.ErrKeyManagerUnavailable, err)
	}

	sig, err := cryptoutils.SignDigest(key, digest)
	if err != nil {
		e.log.Error("could not sign result", "err", err)
		return ffi.Signature{}, ffi.ErrUnknown
	}
	return ffi.Signature(sig), nil
}

func (e *Enclave) record(entrypoint interfaces.Entrypoint, err error, start time.Time) {
	result := "success"
	if err != nil {
		result = "failure"
		var enclaveErr ffi.EnclaveError
		if errors.As(err, &enclaveErr) {
			switch enclaveErr.Kind {
			case ffi.KindFailedContractAuthentication, ffi.KindFailedTxVerification,
				ffi.KindValidationFailure, ffi.KindFailedToDeserialize:
				metrics.AuthFailure(enclaveErr.Kind.String())
			}
		}
	}
	metrics.Ecall(string(entrypoint), result, time.Since(start))
}
