package registry

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract method names.
const (
	MethodRegister    = "register"
	MethodSetRecord   = "setRecord"
	MethodGetAllNames = "getAllNames"
	MethodRecords     = "records"
	MethodDomains     = "domains"
)

// registryABI covers the subset of the name-service contract the client uses.
const registryABI = `[
	{"type":"function","name":"register","stateMutability":"payable",
	 "inputs":[{"name":"name","type":"string"}],"outputs":[]},
	{"type":"function","name":"setRecord","stateMutability":"nonpayable",
	 "inputs":[{"name":"name","type":"string"},{"name":"record","type":"string"}],"outputs":[]},
	{"type":"function","name":"getAllNames","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"string[]"}]},
	{"type":"function","name":"records","stateMutability":"view",
	 "inputs":[{"name":"","type":"string"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"domains","stateMutability":"view",
	 "inputs":[{"name":"","type":"string"}],"outputs":[{"name":"","type":"address"}]}
]`

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	a, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		panic("registry: bad embedded abi: " + err.Error())
	}
	return a
}

// ABI returns the registry contract ABI.
func ABI() abi.ABI { return parsedABI }
