package errors

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	grpccodes "google.golang.org/grpc/codes"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code     uint16
	Name     string
	GrpcCode grpccodes.Code
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	GrpcCode() grpccodes.Code
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) GrpcCode() grpccodes.Code {
	return e.code.GrpcCode
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

type PurposeMetadata struct {
	Purpose string `json:"purpose"`
	Ref     string `json:"ref"`
}

type OwnerMetadata struct {
	OwnerKind string `json:"owner_kind"`
}

type ProofInputMetadata struct {
	Ref string `json:"ref"`
}

type TimeBoundMetadata struct {
	Bound    int64 `json:"bound"`
	Deadline int64 `json:"deadline"`
}

type AlignmentMetadata struct {
	NumOutputs int `json:"num_outputs"`
}

type ConservationMetadata struct {
	InputValue  string `json:"input_value"`
	OutputValue string `json:"output_value"`
}

type IssuanceQuantityMetadata struct {
	AssetName string `json:"asset_name"`
	Quantity  int64  `json:"quantity"`
}

type ReceiptNameMetadata struct {
	AssetName string `json:"asset_name"`
}

type VaultMetadata struct {
	Outpoint string `json:"outpoint"`
}

type TxMetadata struct {
	Txid string `json:"txid"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", grpccodes.Internal}

var MALFORMED_PURPOSE = Code[PurposeMetadata]{
	1,
	"MALFORMED_PURPOSE",
	grpccodes.InvalidArgument,
}

var MISSING_PROOF_INPUT = Code[ProofInputMetadata]{
	2,
	"MISSING_PROOF_INPUT",
	grpccodes.InvalidArgument,
}

var UNAUTHORIZED_OWNER = Code[OwnerMetadata]{
	3,
	"UNAUTHORIZED_OWNER",
	grpccodes.PermissionDenied,
}

var INVALID_TIME_BOUND = Code[TimeBoundMetadata]{
	4,
	"INVALID_TIME_BOUND",
	grpccodes.FailedPrecondition,
}

var ALIGNMENT_NOT_FOUND = Code[AlignmentMetadata]{
	5,
	"ALIGNMENT_NOT_FOUND",
	grpccodes.InvalidArgument,
}

var VALUE_NOT_CONSERVED = Code[ConservationMetadata]{
	6,
	"VALUE_NOT_CONSERVED",
	grpccodes.InvalidArgument,
}

var INVALID_ISSUANCE_QUANTITY = Code[IssuanceQuantityMetadata]{
	7,
	"INVALID_ISSUANCE_QUANTITY",
	grpccodes.InvalidArgument,
}

var NAME_NOT_EXPECTED = Code[ReceiptNameMetadata]{
	8,
	"NAME_NOT_EXPECTED",
	grpccodes.InvalidArgument,
}

var MISSING_PAIRED_OUTPUT = Code[ReceiptNameMetadata]{
	9,
	"MISSING_PAIRED_OUTPUT",
	grpccodes.InvalidArgument,
}

var VAULT_NOT_FOUND = Code[VaultMetadata]{10, "VAULT_NOT_FOUND", grpccodes.NotFound}
var VAULT_ALREADY_SPENT = Code[VaultMetadata]{11, "VAULT_ALREADY_SPENT", grpccodes.InvalidArgument}
var MALFORMED_TX = Code[TxMetadata]{12, "MALFORMED_TX", grpccodes.InvalidArgument}
