package ebml

// ID is a Matroska/EBML element ID including its marker bits, stored as the
// big-endian value of its encoded form.
type ID uint32

// EBML header elements.
const (
	IDEBML               ID = 0x1A45DFA3
	IDEBMLVersion        ID = 0x4286
	IDEBMLReadVersion    ID = 0x42F7
	IDEBMLMaxIDLength    ID = 0x42F2
	IDEBMLMaxSizeLength  ID = 0x42F3
	IDDocType            ID = 0x4282
	IDDocTypeVersion     ID = 0x4287
	IDDocTypeReadVersion ID = 0x4285
)

// Segment and metadata elements.
const (
	IDSegment        ID = 0x18538067
	IDSeekHead       ID = 0x114D9B74
	IDSeek           ID = 0x4DBB
	IDSeekID         ID = 0x53AB
	IDSeekPosition   ID = 0x53AC
	IDInfo           ID = 0x1549A966
	IDTimestampScale ID = 0x2AD7B1
	IDMuxingApp      ID = 0x4D80
	IDWritingApp     ID = 0x5741
	IDDuration       ID = 0x4489
	IDSegmentUID     ID = 0x73A4
)

// Track elements.
const (
	IDTracks          ID = 0x1654AE6B
	IDTrackEntry      ID = 0xAE
	IDTrackNumber     ID = 0xD7
	IDTrackUID        ID = 0x73C5
	IDTrackType       ID = 0x83
	IDDefaultDuration ID = 0x23E383
	IDName            ID = 0x536E
	IDLanguage        ID = 0x22B59C
	IDCodecID         ID = 0x86
	IDCodecPrivate    ID = 0x63A2
	IDCodecDelay      ID = 0x56AA
	IDSeekPreRoll     ID = 0x56BB

	IDVideo                   ID = 0xE0
	IDPixelWidth              ID = 0xB0
	IDPixelHeight             ID = 0xBA
	IDAlphaMode               ID = 0x53C0
	IDColour                  ID = 0x55B0
	IDMatrixCoefficients      ID = 0x55B1
	IDRange                   ID = 0x55B9
	IDTransferCharacteristics ID = 0x55BA
	IDPrimaries               ID = 0x55BB
	IDProjection              ID = 0x7670
	IDProjectionType          ID = 0x7671
	IDProjectionPoseRoll      ID = 0x7675

	IDAudio             ID = 0xE1
	IDSamplingFrequency ID = 0xB5
	IDChannels          ID = 0x9F
	IDBitDepth          ID = 0x6264
)

// Cluster and block elements.
const (
	IDCluster         ID = 0x1F43B675
	IDTimestamp       ID = 0xE7
	IDSimpleBlock     ID = 0xA3
	IDBlockGroup      ID = 0xA0
	IDBlock           ID = 0xA1
	IDBlockAdditions  ID = 0x75A1
	IDBlockMore       ID = 0xA6
	IDBlockAddID      ID = 0xEE
	IDBlockAdditional ID = 0xA5
	IDBlockDuration   ID = 0x9B
	IDReferenceBlock  ID = 0xFB
)

// Cues, attachments and tags.
const (
	IDCues               ID = 0x1C53BB6B
	IDCuePoint           ID = 0xBB
	IDCueTime            ID = 0xB3
	IDCueTrackPositions  ID = 0xB7
	IDCueTrack           ID = 0xF7
	IDCueClusterPosition ID = 0xF1

	IDAttachments     ID = 0x1941A469
	IDAttachedFile    ID = 0x61A7
	IDFileDescription ID = 0x467E
	IDFileName        ID = 0x466E
	IDFileMediaType   ID = 0x4660
	IDFileData        ID = 0x465C
	IDFileUID         ID = 0x46AE

	IDTags        ID = 0x1254C367
	IDTag         ID = 0x7373
	IDTargets     ID = 0x63C0
	IDSimpleTag   ID = 0x67C8
	IDTagName     ID = 0x45A3
	IDTagString   ID = 0x4487
	IDTagLanguage ID = 0x447A
)
