package core

import (
	"errors"
	"slices"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Binary serializers for stored values. Each is composed from mus-go
// primitives; field order is the wire order, so append new fields last.
var (
	IDMUS           mus.Serializer[ID]           = idSer{}
	CursorMUS       mus.Serializer[Cursor]       = cursorSer{}
	CountersMUS     mus.Serializer[Counters]     = countersSer{}
	CheckpointMUS   mus.Serializer[Checkpoint]   = checkpointSer{}
	PartitionMUS    mus.Serializer[Partition]    = partitionSer{}
	RecordMUS       mus.Serializer[Record]       = recordSer{}
	StoredRecordMUS mus.Serializer[StoredRecord] = storedRecordSer{}
	SourceConfigMUS mus.Serializer[SourceConfig] = sourceConfigSer{}
	JobErrorMUS     mus.Serializer[JobError]     = jobErrorSer{}
	JobMUS          mus.Serializer[Job]          = jobSer{}
)

var (
	timeMUS      mus.Serializer[time.Time]         = timeSer{}
	stringsMUS   mus.Serializer[[]string]          = stringsSer{}
	mapMUS       mus.Serializer[map[string]string] = mapSer{}
	jobErrorsMUS mus.Serializer[[]JobError]        = jobErrorsSer{}
)

// ErrLengthOverflow is returned when an encoded length exceeds the data left.
var ErrLengthOverflow = errors.New("encoded length exceeds remaining data")

// skip implements Skip for serializers that have no cheaper way than decoding.
func skip[T any](s mus.Serializer[T], bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

// decoder reads consecutive fields, keeping the offset and the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

// decode reads the next field into dst unless an earlier field failed.
func decode[T any](d *decoder, s mus.Serializer[T], dst *T) {
	if d.err != nil {
		return
	}
	v, n, err := s.Unmarshal(d.bs[d.n:])
	d.n += n
	if err != nil {
		d.err = err
		return
	}
	*dst = v
}

// Lengths are stored as count+1 so that 0 marks a nil slice or map.
func marshalLen(isNil bool, l int, bs []byte) int {
	if isNil {
		return varint.Uint64.Marshal(0, bs)
	}
	return varint.Uint64.Marshal(uint64(l)+1, bs)
}

func sizeLen(isNil bool, l int) int {
	if isNil {
		return varint.Uint64.Size(0)
	}
	return varint.Uint64.Size(uint64(l) + 1)
}

// unmarshalLen returns the count, whether the value was nil, and the bytes read.
func unmarshalLen(bs []byte) (l int, isNil bool, n int, err error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return 0, false, n, err
	}
	if v == 0 {
		return 0, true, n, nil
	}
	if v-1 > uint64(len(bs)-n) {
		return 0, false, n, ErrLengthOverflow
	}
	return int(v - 1), false, n, nil
}

type idSer struct{}

func (idSer) Marshal(v ID, bs []byte) int { return varint.Uint64.Marshal(uint64(v), bs) }
func (idSer) Size(v ID) int               { return varint.Uint64.Size(uint64(v)) }
func (idSer) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}
func (s idSer) Skip(bs []byte) (int, error) { return skip[ID](s, bs) }

// timeSer stores a zero flag followed by Unix seconds and nanoseconds.
// Decoded times are UTC.
type timeSer struct{}

func (timeSer) Marshal(v time.Time, bs []byte) (n int) {
	n = ord.Bool.Marshal(v.IsZero(), bs)
	if v.IsZero() {
		return n
	}
	n += varint.Int64.Marshal(v.Unix(), bs[n:])
	n += varint.Int64.Marshal(int64(v.Nanosecond()), bs[n:])
	return n
}

func (timeSer) Size(v time.Time) int {
	size := ord.Bool.Size(v.IsZero())
	if v.IsZero() {
		return size
	}
	return size + varint.Int64.Size(v.Unix()) + varint.Int64.Size(int64(v.Nanosecond()))
}

func (timeSer) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	d := decoder{bs: bs}
	var zero bool
	decode(&d, ord.Bool, &zero)
	if d.err != nil || zero {
		return time.Time{}, d.n, d.err
	}
	var sec, nsec int64
	decode(&d, varint.Int64, &sec)
	decode(&d, varint.Int64, &nsec)
	if d.err != nil {
		return time.Time{}, d.n, d.err
	}
	return time.Unix(sec, nsec).UTC(), d.n, nil
}

func (s timeSer) Skip(bs []byte) (int, error) { return skip[time.Time](s, bs) }

type stringsSer struct{}

func (stringsSer) Marshal(v []string, bs []byte) (n int) {
	n = marshalLen(v == nil, len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func (stringsSer) Size(v []string) (size int) {
	size = sizeLen(v == nil, len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

func (stringsSer) Unmarshal(bs []byte) (v []string, n int, err error) {
	l, isNil, n, err := unmarshalLen(bs)
	if err != nil || isNil {
		return nil, n, err
	}
	d := decoder{bs: bs, n: n}
	v = make([]string, l)
	for i := range v {
		decode(&d, ord.String, &v[i])
	}
	if d.err != nil {
		return nil, d.n, d.err
	}
	return v, d.n, nil
}

func (s stringsSer) Skip(bs []byte) (int, error) { return skip[[]string](s, bs) }

// mapSer writes keys in sorted order so equal maps encode identically.
type mapSer struct{}

func (mapSer) Marshal(v map[string]string, bs []byte) (n int) {
	n = marshalLen(v == nil, len(v), bs)
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(v[k], bs[n:])
	}
	return n
}

func (mapSer) Size(v map[string]string) (size int) {
	size = sizeLen(v == nil, len(v))
	for k, val := range v {
		size += ord.String.Size(k) + ord.String.Size(val)
	}
	return size
}

func (mapSer) Unmarshal(bs []byte) (v map[string]string, n int, err error) {
	l, isNil, n, err := unmarshalLen(bs)
	if err != nil || isNil {
		return nil, n, err
	}
	d := decoder{bs: bs, n: n}
	v = make(map[string]string, l)
	for range l {
		var k, val string
		decode(&d, ord.String, &k)
		decode(&d, ord.String, &val)
		if d.err != nil {
			return nil, d.n, d.err
		}
		v[k] = val
	}
	return v, d.n, nil
}

func (s mapSer) Skip(bs []byte) (int, error) { return skip[map[string]string](s, bs) }

type cursorSer struct{}

func (cursorSer) Marshal(v Cursor, bs []byte) (n int) {
	n = marshalLen(v == nil, len(v), bs)
	return n + copy(bs[n:], v)
}

func (cursorSer) Size(v Cursor) int {
	return sizeLen(v == nil, len(v)) + len(v)
}

func (cursorSer) Unmarshal(bs []byte) (Cursor, int, error) {
	l, isNil, n, err := unmarshalLen(bs)
	if err != nil || isNil {
		return nil, n, err
	}
	v := make(Cursor, l)
	copy(v, bs[n:n+l])
	return v, n + l, nil
}

func (s cursorSer) Skip(bs []byte) (int, error) { return skip[Cursor](s, bs) }

type countersSer struct{}

func (countersSer) Marshal(v Counters, bs []byte) (n int) {
	n = varint.Int64.Marshal(v.Fetched, bs)
	n += varint.Int64.Marshal(v.Duplicates, bs[n:])
	n += varint.Int64.Marshal(v.Written, bs[n:])
	n += varint.Int64.Marshal(v.Failed, bs[n:])
	n += varint.Int64.Marshal(v.Warnings, bs[n:])
	return n
}

func (countersSer) Size(v Counters) int {
	return varint.Int64.Size(v.Fetched) +
		varint.Int64.Size(v.Duplicates) +
		varint.Int64.Size(v.Written) +
		varint.Int64.Size(v.Failed) +
		varint.Int64.Size(v.Warnings)
}

func (countersSer) Unmarshal(bs []byte) (v Counters, n int, err error) {
	d := decoder{bs: bs}
	for _, field := range []*int64{&v.Fetched, &v.Duplicates, &v.Written, &v.Failed, &v.Warnings} {
		decode(&d, varint.Int64, field)
	}
	return v, d.n, d.err
}

func (s countersSer) Skip(bs []byte) (int, error) { return skip[Counters](s, bs) }

type checkpointSer struct{}

func (checkpointSer) Marshal(v Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.JobID, bs)
	n += CursorMUS.Marshal(v.Cursor, bs[n:])
	n += CountersMUS.Marshal(v.Counters, bs[n:])
	n += varint.Uint64.Marshal(v.Sequence, bs[n:])
	n += ord.Bool.Marshal(v.Exhausted, bs[n:])
	n += timeMUS.Marshal(v.UpdatedAt, bs[n:])
	return n
}

func (checkpointSer) Size(v Checkpoint) int {
	return ord.String.Size(v.JobID) +
		CursorMUS.Size(v.Cursor) +
		CountersMUS.Size(v.Counters) +
		varint.Uint64.Size(v.Sequence) +
		ord.Bool.Size(v.Exhausted) +
		timeMUS.Size(v.UpdatedAt)
}

func (checkpointSer) Unmarshal(bs []byte) (v Checkpoint, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, ord.String, &v.JobID)
	decode(&d, CursorMUS, &v.Cursor)
	decode(&d, CountersMUS, &v.Counters)
	decode(&d, varint.Uint64, &v.Sequence)
	decode(&d, ord.Bool, &v.Exhausted)
	decode(&d, timeMUS, &v.UpdatedAt)
	return v, d.n, d.err
}

func (s checkpointSer) Skip(bs []byte) (int, error) { return skip[Checkpoint](s, bs) }

type partitionSer struct{}

func (partitionSer) Marshal(v Partition, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += timeMUS.Marshal(v.CreatedAt, bs[n:])
	return n
}

func (partitionSer) Size(v Partition) int {
	return IDMUS.Size(v.Id) + ord.String.Size(v.Name) + timeMUS.Size(v.CreatedAt)
}

func (partitionSer) Unmarshal(bs []byte) (v Partition, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, IDMUS, &v.Id)
	decode(&d, ord.String, &v.Name)
	decode(&d, timeMUS, &v.CreatedAt)
	return v, d.n, d.err
}

func (s partitionSer) Skip(bs []byte) (int, error) { return skip[Partition](s, bs) }

type recordSer struct{}

func (recordSer) Marshal(v Record, bs []byte) (n int) {
	for _, s := range []string{v.ExternalID, v.Source, v.Title, v.Abstract, v.Journal, v.DOI} {
		n += ord.String.Marshal(s, bs[n:])
	}
	n += timeMUS.Marshal(v.PublishedAt, bs[n:])
	n += stringsMUS.Marshal(v.Authors, bs[n:])
	n += stringsMUS.Marshal(v.MeSHTerms, bs[n:])
	n += stringsMUS.Marshal(v.Keywords, bs[n:])
	n += ord.String.Marshal(v.PublicationType, bs[n:])
	n += ord.String.Marshal(v.SubjectHint, bs[n:])
	n += mapMUS.Marshal(v.Metadata, bs[n:])
	n += ord.String.Marshal(string(v.Fingerprint), bs[n:])
	return n
}

func (recordSer) Size(v Record) (size int) {
	for _, s := range []string{v.ExternalID, v.Source, v.Title, v.Abstract, v.Journal, v.DOI} {
		size += ord.String.Size(s)
	}
	return size +
		timeMUS.Size(v.PublishedAt) +
		stringsMUS.Size(v.Authors) +
		stringsMUS.Size(v.MeSHTerms) +
		stringsMUS.Size(v.Keywords) +
		ord.String.Size(v.PublicationType) +
		ord.String.Size(v.SubjectHint) +
		mapMUS.Size(v.Metadata) +
		ord.String.Size(string(v.Fingerprint))
}

func (recordSer) Unmarshal(bs []byte) (v Record, n int, err error) {
	d := decoder{bs: bs}
	for _, field := range []*string{&v.ExternalID, &v.Source, &v.Title, &v.Abstract, &v.Journal, &v.DOI} {
		decode(&d, ord.String, field)
	}
	decode(&d, timeMUS, &v.PublishedAt)
	for _, field := range []*[]string{&v.Authors, &v.MeSHTerms, &v.Keywords} {
		decode(&d, stringsMUS, field)
	}
	decode(&d, ord.String, &v.PublicationType)
	decode(&d, ord.String, &v.SubjectHint)
	decode(&d, mapMUS, &v.Metadata)
	var fp string
	decode(&d, ord.String, &fp)
	v.Fingerprint = Fingerprint(fp)
	return v, d.n, d.err
}

func (s recordSer) Skip(bs []byte) (int, error) { return skip[Record](s, bs) }

type storedRecordSer struct{}

func (storedRecordSer) Marshal(v StoredRecord, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += RecordMUS.Marshal(v.Record, bs[n:])
	n += raw.Float64.Marshal(v.Score, bs[n:])
	n += ord.Bool.Marshal(v.ScoreDegraded, bs[n:])
	n += stringsMUS.Marshal(v.Subjects, bs[n:])
	n += ord.String.Marshal(v.JobID, bs[n:])
	n += timeMUS.Marshal(v.InsertedAt, bs[n:])
	return n
}

func (storedRecordSer) Size(v StoredRecord) int {
	return IDMUS.Size(v.Id) +
		RecordMUS.Size(v.Record) +
		raw.Float64.Size(v.Score) +
		ord.Bool.Size(v.ScoreDegraded) +
		stringsMUS.Size(v.Subjects) +
		ord.String.Size(v.JobID) +
		timeMUS.Size(v.InsertedAt)
}

func (storedRecordSer) Unmarshal(bs []byte) (v StoredRecord, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, IDMUS, &v.Id)
	decode(&d, RecordMUS, &v.Record)
	decode(&d, raw.Float64, &v.Score)
	decode(&d, ord.Bool, &v.ScoreDegraded)
	decode(&d, stringsMUS, &v.Subjects)
	decode(&d, ord.String, &v.JobID)
	decode(&d, timeMUS, &v.InsertedAt)
	return v, d.n, d.err
}

func (s storedRecordSer) Skip(bs []byte) (int, error) { return skip[StoredRecord](s, bs) }

type sourceConfigSer struct{}

func (sourceConfigSer) Marshal(v SourceConfig, bs []byte) (n int) {
	n = ord.String.Marshal(v.Kind, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.Query, bs[n:])
	n += stringsMUS.Marshal(v.SubjectAreas, bs[n:])
	n += varint.Int64.Marshal(int64(v.MaxDocuments), bs[n:])
	n += timeMUS.Marshal(v.DateFrom, bs[n:])
	n += timeMUS.Marshal(v.DateTo, bs[n:])
	n += raw.Float64.Marshal(v.QualityThreshold, bs[n:])
	n += ord.String.Marshal(v.Path, bs[n:])
	n += mapMUS.Marshal(v.Params, bs[n:])
	return n
}

func (sourceConfigSer) Size(v SourceConfig) int {
	return ord.String.Size(v.Kind) +
		ord.String.Size(v.Name) +
		ord.String.Size(v.Query) +
		stringsMUS.Size(v.SubjectAreas) +
		varint.Int64.Size(int64(v.MaxDocuments)) +
		timeMUS.Size(v.DateFrom) +
		timeMUS.Size(v.DateTo) +
		raw.Float64.Size(v.QualityThreshold) +
		ord.String.Size(v.Path) +
		mapMUS.Size(v.Params)
}

func (sourceConfigSer) Unmarshal(bs []byte) (v SourceConfig, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, ord.String, &v.Kind)
	decode(&d, ord.String, &v.Name)
	decode(&d, ord.String, &v.Query)
	decode(&d, stringsMUS, &v.SubjectAreas)
	var maxDocs int64
	decode(&d, varint.Int64, &maxDocs)
	v.MaxDocuments = int(maxDocs)
	decode(&d, timeMUS, &v.DateFrom)
	decode(&d, timeMUS, &v.DateTo)
	decode(&d, raw.Float64, &v.QualityThreshold)
	decode(&d, ord.String, &v.Path)
	decode(&d, mapMUS, &v.Params)
	return v, d.n, d.err
}

func (s sourceConfigSer) Skip(bs []byte) (int, error) { return skip[SourceConfig](s, bs) }

type jobErrorSer struct{}

func (jobErrorSer) Marshal(v JobError, bs []byte) (n int) {
	n = ord.String.Marshal(v.Kind, bs)
	n += ord.String.Marshal(v.Message, bs[n:])
	n += ord.String.Marshal(v.Hint, bs[n:])
	n += timeMUS.Marshal(v.At, bs[n:])
	return n
}

func (jobErrorSer) Size(v JobError) int {
	return ord.String.Size(v.Kind) + ord.String.Size(v.Message) + ord.String.Size(v.Hint) + timeMUS.Size(v.At)
}

func (jobErrorSer) Unmarshal(bs []byte) (v JobError, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, ord.String, &v.Kind)
	decode(&d, ord.String, &v.Message)
	decode(&d, ord.String, &v.Hint)
	decode(&d, timeMUS, &v.At)
	return v, d.n, d.err
}

func (s jobErrorSer) Skip(bs []byte) (int, error) { return skip[JobError](s, bs) }

type jobErrorsSer struct{}

func (jobErrorsSer) Marshal(v []JobError, bs []byte) (n int) {
	n = marshalLen(v == nil, len(v), bs)
	for _, e := range v {
		n += JobErrorMUS.Marshal(e, bs[n:])
	}
	return n
}

func (jobErrorsSer) Size(v []JobError) (size int) {
	size = sizeLen(v == nil, len(v))
	for _, e := range v {
		size += JobErrorMUS.Size(e)
	}
	return size
}

func (jobErrorsSer) Unmarshal(bs []byte) (v []JobError, n int, err error) {
	l, isNil, n, err := unmarshalLen(bs)
	if err != nil || isNil {
		return nil, n, err
	}
	d := decoder{bs: bs, n: n}
	v = make([]JobError, l)
	for i := range v {
		decode(&d, JobErrorMUS, &v[i])
	}
	if d.err != nil {
		return nil, d.n, d.err
	}
	return v, d.n, nil
}

func (s jobErrorsSer) Skip(bs []byte) (int, error) { return skip[[]JobError](s, bs) }

type jobSer struct{}

func (jobSer) Marshal(v Job, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += SourceConfigMUS.Marshal(v.Source, bs[n:])
	n += stringsMUS.Marshal(v.SubjectAreas, bs[n:])
	n += ord.String.Marshal(string(v.State), bs[n:])
	n += CursorMUS.Marshal(v.Cursor, bs[n:])
	n += varint.Uint64.Marshal(v.Sequence, bs[n:])
	n += CountersMUS.Marshal(v.Counters, bs[n:])
	for _, t := range []time.Time{v.CreatedAt, v.StartedAt, v.UpdatedAt, v.EndedAt} {
		n += timeMUS.Marshal(t, bs[n:])
	}
	n += ord.Bool.Marshal(v.LastError != nil, bs[n:])
	if v.LastError != nil {
		n += JobErrorMUS.Marshal(*v.LastError, bs[n:])
	}
	n += jobErrorsMUS.Marshal(v.RecentErrors, bs[n:])
	n += ord.String.Marshal(v.ResumedFrom, bs[n:])
	return n
}

func (jobSer) Size(v Job) (size int) {
	size = ord.String.Size(v.ID) +
		SourceConfigMUS.Size(v.Source) +
		stringsMUS.Size(v.SubjectAreas) +
		ord.String.Size(string(v.State)) +
		CursorMUS.Size(v.Cursor) +
		varint.Uint64.Size(v.Sequence) +
		CountersMUS.Size(v.Counters)
	for _, t := range []time.Time{v.CreatedAt, v.StartedAt, v.UpdatedAt, v.EndedAt} {
		size += timeMUS.Size(t)
	}
	size += ord.Bool.Size(v.LastError != nil)
	if v.LastError != nil {
		size += JobErrorMUS.Size(*v.LastError)
	}
	size += jobErrorsMUS.Size(v.RecentErrors)
	return size + ord.String.Size(v.ResumedFrom)
}

func (jobSer) Unmarshal(bs []byte) (v Job, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, ord.String, &v.ID)
	decode(&d, SourceConfigMUS, &v.Source)
	decode(&d, stringsMUS, &v.SubjectAreas)
	var state string
	decode(&d, ord.String, &state)
	v.State = JobState(state)
	decode(&d, CursorMUS, &v.Cursor)
	decode(&d, varint.Uint64, &v.Sequence)
	decode(&d, CountersMUS, &v.Counters)
	for _, field := range []*time.Time{&v.CreatedAt, &v.StartedAt, &v.UpdatedAt, &v.EndedAt} {
		decode(&d, timeMUS, field)
	}
	var hasLast bool
	decode(&d, ord.Bool, &hasLast)
	if hasLast {
		var last JobError
		decode(&d, JobErrorMUS, &last)
		v.LastError = &last
	}
	decode(&d, jobErrorsMUS, &v.RecentErrors)
	decode(&d, ord.String, &v.ResumedFrom)
	if d.err != nil {
		return Job{}, d.n, d.err
	}
	return v, d.n, nil
}

func (s jobSer) Skip(bs []byte) (int, error) { return skip[Job](s, bs) }
