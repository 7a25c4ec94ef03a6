package metric

// EventKind identifies the storage-service operation a pushed event
// represents. The recognized kinds are the constants below; IsRecognized
// rejects any other value. Go does not check switch exhaustiveness, so
// Classify sends every kind it does not name to AlgoGenericIncrement.
type EventKind string

// Recognized operation names, verbatim from the API contract. The stored
// operation counter key uses this bare form; the HTTP response layer is
// responsible for prefixing it with "s3:" when serializing the
// `operations` map.
const (
	CreateBucket               EventKind = "CreateBucket"
	DeleteBucket               EventKind = "DeleteBucket"
	ListBucket                 EventKind = "ListBucket"
	GetBucketAcl               EventKind = "GetBucketAcl"
	PutBucketAcl               EventKind = "PutBucketAcl"
	PutBucketWebsite           EventKind = "PutBucketWebsite"
	GetBucketWebsite           EventKind = "GetBucketWebsite"
	DeleteBucketWebsite        EventKind = "DeleteBucketWebsite"
	PutObject                  EventKind = "PutObject"
	CopyObject                 EventKind = "CopyObject"
	UploadPart                 EventKind = "UploadPart"
	ListBucketMultipartUploads EventKind = "ListBucketMultipartUploads"
	ListMultipartUploadParts   EventKind = "ListMultipartUploadParts"
	InitiateMultipartUpload    EventKind = "InitiateMultipartUpload"
	CompleteMultipartUpload    EventKind = "CompleteMultipartUpload"
	AbortMultipartUpload       EventKind = "AbortMultipartUpload"
	DeleteObject               EventKind = "DeleteObject"
	MultiObjectDelete          EventKind = "MultiObjectDelete"
	GetObject                  EventKind = "GetObject"
	GetObjectAcl               EventKind = "GetObjectAcl"
	PutObjectAcl               EventKind = "PutObjectAcl"
	HeadBucket                 EventKind = "HeadBucket"
	HeadObject                 EventKind = "HeadObject"
)

// OperationNames lists every recognized operation counter name, in the
// order new metrics records enumerate them.
var OperationNames = []string{
	string(CreateBucket),
	string(DeleteBucket),
	string(ListBucket),
	string(GetBucketAcl),
	string(PutBucketAcl),
	string(PutBucketWebsite),
	string(GetBucketWebsite),
	string(DeleteBucketWebsite),
	string(PutObject),
	string(CopyObject),
	string(UploadPart),
	string(ListBucketMultipartUploads),
	string(ListMultipartUploadParts),
	string(InitiateMultipartUpload),
	string(CompleteMultipartUpload),
	string(AbortMultipartUpload),
	string(DeleteObject),
	string(MultiObjectDelete),
	string(GetObject),
	string(GetObjectAcl),
	string(PutObjectAcl),
	string(HeadBucket),
	string(HeadObject),
}

// IsRecognized reports whether kind names a known operation.
func IsRecognized(kind EventKind) bool {
	for _, name := range OperationNames {
		if name == string(kind) {
			return true
		}
	}
	return false
}

// Algorithm identifies one of the six write algorithms a pushed event is
// classified into.
type Algorithm int

const (
	// AlgoGenericIncrement covers most ACL/HEAD/LIST/multipart-lifecycle
	// operations, plus outgoing traffic folded into GetObject.
	AlgoGenericIncrement Algorithm = iota
	AlgoCreateBucket
	AlgoUploadPart
	AlgoCompleteMultipartUpload
	// AlgoPutObject covers both PutObject and CopyObject.
	AlgoPutObject
	// AlgoDeleteObject covers both DeleteObject and MultiObjectDelete.
	AlgoDeleteObject
)

// Classify maps an event kind onto its write algorithm.
func Classify(kind EventKind) Algorithm {
	switch kind {
	case CreateBucket:
		return AlgoCreateBucket
	case UploadPart:
		return AlgoUploadPart
	case CompleteMultipartUpload:
		return AlgoCompleteMultipartUpload
	case PutObject, CopyObject:
		return AlgoPutObject
	case DeleteObject, MultiObjectDelete:
		return AlgoDeleteObject
	default:
		return AlgoGenericIncrement
	}
}

// Params carries the numeric payload of a pushed event. Which fields are
// populated depends on both the event kind and the granularities the
// caller wants recorded; unused fields stay nil/empty. Fields are
// pointers where the distinction between "absent" and "zero" changes
// write semantics (OldByteLength nil means "new object", not "object of
// size 0").
type Params struct {
	Bucket    string
	AccountID string
	Service   string

	ByteLength      *int64
	NewByteLength   *int64
	OldByteLength   *int64
	NumberOfObjects *int64
}

// Levels returns the granularities present in p, in fan-out order.
func (p Params) Levels() []Level {
	var out []Level
	if p.Bucket != "" {
		out = append(out, LevelBucket)
	}
	if p.AccountID != "" {
		out = append(out, LevelAccount)
	}
	if p.Service != "" {
		out = append(out, LevelService)
	}
	return out
}

// ResourceID returns the identifier p carries for the given level, or ""
// if that level isn't present.
func (p Params) ResourceID(l Level) string {
	switch l {
	case LevelBucket:
		return p.Bucket
	case LevelAccount:
		return p.AccountID
	case LevelService:
		return p.Service
	default:
		return ""
	}
}
