package contract

// SmartContract describes a launched contract as seen from outside the VM.
type SmartContract interface {
	ContractName() string

	// PublicFunctions lists the functions a transaction may call, read-only
	// ones included.
	PublicFunctions() []string

	// String displays the definitions of the contract.
	String() string
}
