package config

const (
	OCREngineTesseract = "tesseract"
	OCREngineTextract  = "textract"
)

type OCRConfig struct {
	Engine          string   `yaml:"engine"`
	Languages       []string `yaml:"languages"`
	DPI             float64  `yaml:"dpi"`
	Preprocess      bool     `yaml:"preprocess"`
	PageConcurrency int      `yaml:"pageConcurrency"`
}

type TextractConfig struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}
