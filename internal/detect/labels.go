package detect

// UnknownLabel is reported for class ids outside the label table.
const UnknownLabel = "unknown"

// FaceLabel is the single class produced by face detectors.
const FaceLabel = "face"

// FaceLabels is the label table for face detectors.
var FaceLabels = []string{FaceLabel}

// PersonLabel is the COCO class that gates face detection.
const PersonLabel = "person"

// COCOLabels is the 80 class label table of COCO trained object detectors.
var COCOLabels = []string{
	"person", "bicycle", "car", "motorcycle", "aeroplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake",
	"chair", "sofa", "potted plant", "bed", "dining table", "toilet", "tv", "laptop",
	"mouse", "remote", "keyboard", "mobile phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
